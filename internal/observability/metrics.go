// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/warden/internal/auth"
)

// Metrics contains the Warden Prometheus collectors. It implements
// auth.Observer and the mail and cleanup observers.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	RegistrationsTotal  prometheus.Counter
	TokensIssuedTotal   *prometheus.CounterVec
	TokensRedeemedTotal *prometheus.CounterVec
	TokensCleanedTotal  prometheus.Counter
	MailDeliveriesTotal *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the Warden metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_registrations_total",
				Help: "Accounts registered",
			},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tokens_issued_total",
				Help: "Ephemeral tokens issued by purpose",
			},
			[]string{"purpose"},
		),
		TokensRedeemedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tokens_redeemed_total",
				Help: "Ephemeral token redemptions by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		TokensCleanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_tokens_cleaned_total",
				Help: "Used or expired tokens removed by cleanup",
			},
		),
		MailDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_mail_deliveries_total",
				Help: "Mail deliveries by message kind and status",
			},
			[]string{"kind", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "HTTP requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.TokensIssuedTotal,
		m.TokensRedeemedTotal,
		m.TokensCleanedTotal,
		m.MailDeliveriesTotal,
		m.HTTPRequestsTotal,
	)
	return m
}

// Registered counts a new account.
func (m *Metrics) Registered() {
	m.RegistrationsTotal.Inc()
}

// LoginAttempt counts a login by outcome.
func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// TokenIssued counts an issued token.
func (m *Metrics) TokenIssued(purpose auth.Purpose) {
	m.TokensIssuedTotal.WithLabelValues(purposeLabel(purpose)).Inc()
}

// TokenRedeemed counts a redemption attempt.
func (m *Metrics) TokenRedeemed(purpose auth.Purpose, outcome string) {
	m.TokensRedeemedTotal.WithLabelValues(purposeLabel(purpose), outcome).Inc()
}

// TokensCleaned adds removed tokens to the cleanup counter.
func (m *Metrics) TokensCleaned(n int64) {
	if n > 0 {
		m.TokensCleanedTotal.Add(float64(n))
	}
}

// MailDelivered counts a finished delivery. status is sent, failed or dropped.
func (m *Metrics) MailDelivered(kind, status string) {
	m.MailDeliveriesTotal.WithLabelValues(kind, status).Inc()
}

// HTTPRequest counts a served request. route is the matched pattern, not the raw path.
func (m *Metrics) HTTPRequest(route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func purposeLabel(p auth.Purpose) string {
	return strings.ToLower(string(p))
}

var _ auth.Observer = (*Metrics)(nil)
