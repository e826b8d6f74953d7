package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/routes"
)

// Ed25519Provider authenticates a single editor identity by signature.
// The client fetches a challenge, signs it with its private key and sends
// the signature on every request; the server holds only the public key.
type Ed25519Provider struct {
	publicKey  ed25519.PublicKey
	headerName string
	userID     model.UserID

	mu        sync.Mutex
	challenge []byte
}

func NewEd25519Provider(publicKeyPEM string, headerName string, userID model.UserID) (*Ed25519Provider, error) {
	publicKey, err := parseEd25519PublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	challenge, err := newChallenge()
	if err != nil {
		return nil, err
	}

	return &Ed25519Provider{
		publicKey:  publicKey,
		headerName: headerName,
		userID:     userID,
		challenge:  challenge,
	}, nil
}

func parseEd25519PublicKey(publicKeyPEM string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 public key")
	}
	return key, nil
}

func newChallenge() ([]byte, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	return challenge, nil
}

// Challenge returns a copy of the current challenge to be signed.
func (p *Ed25519Provider) Challenge() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.challenge))
	copy(out, p.challenge)
	return out
}

// RefreshChallenge rotates the challenge, invalidating outstanding
// signatures.
func (p *Ed25519Provider) RefreshChallenge() error {
	challenge, err := newChallenge()
	if err != nil {
		authLogger.Error().Err(err).Msg("Failed to rotate challenge")
		return err
	}

	p.mu.Lock()
	p.challenge = challenge
	p.mu.Unlock()
	return nil
}

// VerifySignature reports whether sig is a valid signature over the
// current challenge.
func (p *Ed25519Provider) VerifySignature(sig []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ed25519.Verify(p.publicKey, p.challenge, sig)
}

// requestSignature pulls the base64 signature off the request, preferring
// the auth header over the session cookie.
func (p *Ed25519Provider) requestSignature(r *http.Request) []byte {
	l := zerolog.Ctx(r.Context())

	if header := r.Header.Get(p.headerName); header != "" {
		sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
		if err == nil {
			return sig
		}
		l.Error().Err(err).Msg("Failed to decode signature header")
	}

	if cookie, err := r.Cookie(config.CookieAuthToken); err == nil && cookie.Value != "" {
		sig, err := base64.StdEncoding.DecodeString(cookie.Value)
		if err == nil {
			return sig
		}
		l.Error().Err(err).Msg("Failed to decode signature cookie")
	}

	return nil
}

// Middleware attaches the configured user to requests carrying a valid
// signature. Requests without one proceed anonymously.
func (p *Ed25519Provider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sig := p.requestSignature(r); len(sig) > 0 && p.VerifySignature(sig) {
				r = r.WithContext(WithUserID(r.Context(), p.userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *Ed25519Provider) SessionUserID(r *http.Request) (model.UserID, error) {
	id, ok := UserID(r.Context())
	if !ok {
		return "", errors.New("no user in context")
	}
	return id, nil
}

func (p *Ed25519Provider) RequireUser(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	id, err := p.SessionUserID(r)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Unauthorized request")

		// Point htmx clients at the signing flow.
		w.Header().Add(config.HHxRedirect, routes.AuthChallenge)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", err
	}
	return id, nil
}

// HandleUserWebhook is a no-op; the key pair is the whole user model.
func (p *Ed25519Provider) HandleUserWebhook(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
