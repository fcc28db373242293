// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// DefaultProductName appears in subjects and bodies when none is configured.
const DefaultProductName = "Warden"

var (
	subjects = map[string]string{
		KindVerification:  "Verify Your Email Address - %s",
		KindPasswordReset: "Password Reset Request - %s",
	}
	linkPaths = map[string]string{
		KindVerification:  "/verify-email/",
		KindPasswordReset: "/reset-password/",
	}
)

// Renderer turns a token into a verification or reset Message.
type Renderer struct {
	baseURL string
	product string
	ttl     time.Duration
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

type templateData struct {
	Product   string
	Username  string
	Link      string
	ExpiresIn string
}

// NewRenderer parses the embedded templates. Links are built on baseURL; ttl
// is the lifetime stated in the message.
func NewRenderer(baseURL, product string, ttl time.Duration) (*Renderer, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, oops.Code(CodeRenderFailed).With("base_url", baseURL).Wrap(err)
	}
	if product == "" {
		product = DefaultProductName
	}

	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code(CodeRenderFailed).With("operation", "parse html templates").Wrap(err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, oops.Code(CodeRenderFailed).With("operation", "parse text templates").Wrap(err)
	}

	return &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		product: product,
		ttl:     ttl,
		html:    html,
		text:    text,
	}, nil
}

// Link returns the frontend URL carrying tokenValue for kind.
func (r *Renderer) Link(kind, tokenValue string) string {
	return r.baseURL + linkPaths[kind] + url.PathEscape(tokenValue)
}

// Render builds the message of kind for the recipient.
func (r *Renderer) Render(kind, to, username, tokenValue string) (*Message, error) {
	subject, ok := subjects[kind]
	if !ok {
		return nil, oops.Code(CodeRenderFailed).With("kind", kind).Errorf("unknown message kind %q", kind)
	}

	data := templateData{
		Product:   r.product,
		Username:  username,
		Link:      r.Link(kind, tokenValue),
		ExpiresIn: humanizeTTL(r.ttl),
	}

	var html, text bytes.Buffer
	if err := r.html.ExecuteTemplate(&html, kind+".html", data); err != nil {
		return nil, oops.Code(CodeRenderFailed).With("kind", kind).Wrap(err)
	}
	if err := r.text.ExecuteTemplate(&text, kind+".txt", data); err != nil {
		return nil, oops.Code(CodeRenderFailed).With("kind", kind).Wrap(err)
	}

	return &Message{
		Kind:    kind,
		To:      to,
		Subject: fmt.Sprintf(subject, r.product),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

func humanizeTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
