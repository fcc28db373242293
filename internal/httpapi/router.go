// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi serves the account endpoints over HTTP.
//
// Every response body is an Envelope. Routes are mounted under /auth and,
// for existing clients, under /api/auth.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Defaults for RouterConfig.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
)

// RouterConfig holds the dependencies of NewRouter.
type RouterConfig struct {
	Service AuthService

	// Optional.
	Logger         *slog.Logger
	Observer       RequestObserver
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter returns the HTTP handler for the auth API.
//
// Middleware order:
//
//	Recovery → RequestID → Logging → Timeout → LimitBody
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	h := NewHandler(cfg.Service, logger)

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(Logging(logger, cfg.Observer))
	r.Use(chimw.Timeout(timeout))
	r.Use(LimitBody(maxBody))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, Envelope{Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "Method not allowed"})
	})

	routes := func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/verify/{token}", h.VerifyEmail)
		r.Post("/resend-verification", h.ResendVerification)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.With(RequireSession(cfg.Service, logger)).Get("/verify", h.VerifySession)
	}
	r.Route("/auth", routes)
	r.Route("/api/auth", routes)

	return r
}
