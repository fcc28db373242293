// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/httpapi"
	"github.com/holomush/warden/internal/mail"
)

const (
	alicePassword = "Passw0rd1"
	newPassword   = "N3wPassword"
)

func (m *mailbox) Enqueue(msg *mail.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, capturedMail{
		Kind:  msg.Kind,
		To:    msg.To,
		Token: tokenPattern.FindString(msg.Text),
	})
	return true
}

// last returns the most recent message of kind sent to to.
func (m *mailbox) last(kind, to string) capturedMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Kind == kind && m.messages[i].To == to {
			return m.messages[i]
		}
	}
	Fail("no " + kind + " mail for " + to)
	return capturedMail{}
}

func (m *mailbox) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	server *httptest.Server
	mail   *mailbox
	clock  *clock
	tokens *auth.TokenStore
}

func newHarness() *harness {
	c := &clock{now: time.Now().UTC().Truncate(time.Microsecond)}
	box := &mailbox{}

	accounts, err := auth.NewAccountStore(postgres.NewAccountRepository(env.pool), auth.NewArgon2idHasher(),
		auth.WithAccountClock(c.Now),
	)
	Expect(err).NotTo(HaveOccurred())
	tokens, err := auth.NewTokenStore(postgres.NewTokenRepository(env.pool), auth.WithTokenClock(c.Now))
	Expect(err).NotTo(HaveOccurred())
	sessions, err := auth.NewSessionIssuer(auth.SessionConfig{
		Secret: []byte("integration-secret-0123456789abcdef"),
		Clock:  c.Now,
	})
	Expect(err).NotTo(HaveOccurred())
	renderer, err := mail.NewRenderer("http://localhost:3000", "", auth.DefaultTokenTTL)
	Expect(err).NotTo(HaveOccurred())

	svc, err := auth.NewService(auth.ServiceConfig{
		Accounts: accounts,
		Tokens:   tokens,
		Sessions: sessions,
		Notifier: mail.NewNotifier(renderer, box, nil),
	})
	Expect(err).NotTo(HaveOccurred())

	return &harness{
		server: httptest.NewServer(httpapi.NewRouter(httpapi.RouterConfig{Service: svc})),
		mail:   box,
		clock:  c,
		tokens: tokens,
	}
}

func (h *harness) do(method, path string, body any, bearer string) (int, httpapi.Envelope) {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(env.ctx, method, h.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := h.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var envelope httpapi.Envelope
	Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
	return resp.StatusCode, envelope
}

func (h *harness) register(username, email, password string) {
	status, envelope := h.do(http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	}, "")
	Expect(status).To(Equal(http.StatusCreated), envelope.Message)
}

func (h *harness) login(email, password string) (int, httpapi.Envelope) {
	return h.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
}

func (h *harness) verify(email string) {
	token := h.mail.last(mail.KindVerification, email).Token
	Expect(token).NotTo(BeEmpty())
	status, envelope := h.do(http.MethodGet, "/auth/verify/"+token, nil, "")
	Expect(status).To(Equal(http.StatusOK), envelope.Message)
}

var _ = Describe("Account lifecycle over Postgres", func() {
	var h *harness

	BeforeEach(func() {
		truncateTables(env.ctx, env.pool)
		h = newHarness()
	})

	AfterEach(func() {
		h.server.Close()
	})

	Describe("registration and verification", func() {
		It("requires email verification before login", func() {
			h.register("alice", "Alice@Example.com", alicePassword)

			status, envelope := h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(envelope.Message).To(ContainSubstring("verify your email"))

			h.verify("alice@example.com")

			status, envelope = h.login("ALICE@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.Token).NotTo(BeEmpty())
			Expect(envelope.User).NotTo(BeNil())
			Expect(envelope.User.Username).To(Equal("alice"))
			Expect(envelope.User.Email).To(Equal("alice@example.com"))
			Expect(envelope.User.IsVerified).To(BeTrue())

			status, envelope = h.do(http.MethodGet, "/auth/verify", nil, envelope.Token)
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.User.Username).To(Equal("alice"))
		})

		It("rejects a verification token the second time", func() {
			h.register("alice", "alice@example.com", alicePassword)
			token := h.mail.last(mail.KindVerification, "alice@example.com").Token

			status, _ := h.do(http.MethodGet, "/auth/verify/"+token, nil, "")
			Expect(status).To(Equal(http.StatusOK))

			status, envelope := h.do(http.MethodGet, "/auth/verify/"+token, nil, "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(Equal("Invalid or expired verification token"))
		})

		It("invalidates the previous verification token on resend", func() {
			h.register("alice", "alice@example.com", alicePassword)
			first := h.mail.last(mail.KindVerification, "alice@example.com").Token

			status, _ := h.do(http.MethodPost, "/auth/resend-verification",
				map[string]string{"email": "alice@example.com"}, "")
			Expect(status).To(Equal(http.StatusOK))
			second := h.mail.last(mail.KindVerification, "alice@example.com").Token
			Expect(second).NotTo(Equal(first))

			status, _ = h.do(http.MethodGet, "/auth/verify/"+first, nil, "")
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _ = h.do(http.MethodGet, "/auth/verify/"+second, nil, "")
			Expect(status).To(Equal(http.StatusOK))
		})

		It("rejects verification tokens after they expire", func() {
			h.register("alice", "alice@example.com", alicePassword)
			token := h.mail.last(mail.KindVerification, "alice@example.com").Token

			h.clock.Advance(auth.DefaultTokenTTL + time.Minute)

			status, _ := h.do(http.MethodGet, "/auth/verify/"+token, nil, "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("enforces unique emails and usernames", func() {
			h.register("alice", "alice@example.com", alicePassword)

			status, envelope := h.do(http.MethodPost, "/auth/register", map[string]string{
				"username": "alice2", "email": "ALICE@example.com", "password": alicePassword,
			}, "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(Equal("Email already registered"))

			status, envelope = h.do(http.MethodPost, "/auth/register", map[string]string{
				"username": "alice", "email": "other@example.com", "password": alicePassword,
			}, "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(Equal("Username already taken"))
		})

		It("admits exactly one of several concurrent registrations for an email", func() {
			const attempts = 8
			statuses := make(chan int, attempts)
			var wg sync.WaitGroup
			for i := range attempts {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					status, _ := h.do(http.MethodPost, "/auth/register", map[string]string{
						"username": "racer" + strings.Repeat("x", i),
						"email":    "race@example.com",
						"password": alicePassword,
					}, "")
					statuses <- status
				}(i)
			}
			wg.Wait()
			close(statuses)

			created := 0
			for status := range statuses {
				if status == http.StatusCreated {
					created++
				} else {
					Expect(status).To(Equal(http.StatusBadRequest))
				}
			}
			Expect(created).To(Equal(1))
		})
	})

	Describe("lockout", func() {
		BeforeEach(func() {
			h.register("alice", "alice@example.com", alicePassword)
			h.verify("alice@example.com")
		})

		It("locks after repeated failures and unlocks after the window", func() {
			for range auth.DefaultLockoutThreshold {
				status, envelope := h.login("alice@example.com", "Wrong1pass")
				Expect(status).To(Equal(http.StatusUnauthorized))
				Expect(envelope.Message).To(Equal("Invalid email or password"))
			}

			status, envelope := h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusLocked))
			Expect(envelope.Message).To(ContainSubstring("temporarily locked"))

			h.clock.Advance(auth.DefaultLockoutWindow + time.Second)

			status, _ = h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusOK))
		})

		It("resets the failure count after a successful login", func() {
			for range auth.DefaultLockoutThreshold - 1 {
				status, _ := h.login("alice@example.com", "Wrong1pass")
				Expect(status).To(Equal(http.StatusUnauthorized))
			}
			status, _ := h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = h.login("alice@example.com", "Wrong1pass")
			Expect(status).To(Equal(http.StatusUnauthorized))
			status, _ = h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusOK))
		})
	})

	Describe("password reset", func() {
		BeforeEach(func() {
			h.register("alice", "alice@example.com", alicePassword)
			h.verify("alice@example.com")
		})

		It("replaces the password with a single-use token", func() {
			status, envelope := h.do(http.MethodPost, "/auth/forgot-password",
				map[string]string{"email": "alice@example.com"}, "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.Success).To(BeTrue())
			token := h.mail.last(mail.KindPasswordReset, "alice@example.com").Token

			status, _ = h.do(http.MethodPost, "/auth/reset-password",
				map[string]string{"token": token, "newPassword": newPassword}, "")
			Expect(status).To(Equal(http.StatusOK))

			status, _ = h.login("alice@example.com", alicePassword)
			Expect(status).To(Equal(http.StatusUnauthorized))
			status, _ = h.login("alice@example.com", newPassword)
			Expect(status).To(Equal(http.StatusOK))

			status, envelope = h.do(http.MethodPost, "/auth/reset-password",
				map[string]string{"token": token, "newPassword": "An0therPass"}, "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(Equal("Invalid or expired reset token"))
		})

		It("answers identically for unknown emails", func() {
			status, known := h.do(http.MethodPost, "/auth/forgot-password",
				map[string]string{"email": "alice@example.com"}, "")
			Expect(status).To(Equal(http.StatusOK))
			status, unknown := h.do(http.MethodPost, "/auth/forgot-password",
				map[string]string{"email": "nobody@example.com"}, "")
			Expect(status).To(Equal(http.StatusOK))

			Expect(unknown).To(Equal(known))
			Expect(h.mail.count(mail.KindPasswordReset)).To(Equal(1))
		})

		It("does not accept a reset token as a verification token", func() {
			h.do(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "alice@example.com"}, "")
			token := h.mail.last(mail.KindPasswordReset, "alice@example.com").Token

			status, _ := h.do(http.MethodGet, "/auth/verify/"+token, nil, "")
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _ = h.do(http.MethodPost, "/auth/reset-password",
				map[string]string{"token": token, "newPassword": newPassword}, "")
			Expect(status).To(Equal(http.StatusOK))
		})
	})

	Describe("token cleanup", func() {
		It("removes used and expired tokens from the database", func() {
			h.register("alice", "alice@example.com", alicePassword)
			h.register("bob", "bob@example.com", alicePassword)
			h.verify("alice@example.com")

			h.clock.Advance(auth.DefaultTokenTTL + time.Minute)

			removed, err := h.tokens.CleanupExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(int64(2)))

			var remaining int
			Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM ephemeral_tokens").Scan(&remaining)).To(Succeed())
			Expect(remaining).To(BeZero())
		})
	})
})
