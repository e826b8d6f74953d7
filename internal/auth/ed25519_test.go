package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vellumhq/vellum/internal/auth/testdata"
	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/routes"
)

// rsaPublicKeyPEM is a valid PKIX key of the wrong algorithm.
const rsaPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAyPUgxsQeOZqZq2nCIrem
i48dPhHBG1V9o74YBlDexzOC3bPbpf41jT+nHek/NInijAarBT/S+kv7phRfh+j7
m9c9/J5Dv8rpxxww//zofGfTpkqcQGoZ7qG9sZHORXS/B4q/MYk6POlNuaEJkrIv
+dZGToxGQ3e+enFJ6Pg3jSEI4hQJwK1eX+YZI29HnFHdVD1rHuXaW5zISISfixlp
ISc8iZrb2Fi9hG6yt9TLn1L56Q+vF3Tu4kncjeZJQCzyUDpkcsuuyhMRr7nYSUpr
RKrf9m1v/ixHRpr2UWoqfR9B18JrlmL1emsZoXVEuHJTb1q4tltmI+HO3pRFox1G
7QIDAQAB
-----END PUBLIC KEY-----`

func newTestProvider(t *testing.T) *Ed25519Provider {
	t.Helper()
	provider, err := NewEd25519Provider(testdata.TestPublicKeyPEM, "Authorization", testdata.TestUserID)
	if err != nil {
		t.Fatalf("NewEd25519Provider: %v", err)
	}
	return provider
}

// signChallenge signs the provider's current challenge with the fixture
// private key and returns the base64 form a client would send.
func signChallenge(t *testing.T, provider *Ed25519Provider) string {
	t.Helper()

	block, _ := pem.Decode([]byte(testdata.TestPrivateKeyPEM))
	if block == nil {
		t.Fatal("Fixture private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("Parse fixture private key: %v", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		t.Fatal("Fixture private key is not Ed25519")
	}

	sig := ed25519.Sign(key, provider.Challenge())
	return base64.StdEncoding.EncodeToString(sig)
}

func TestNewEd25519Provider(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		provider := newTestProvider(t)

		if provider.headerName != "Authorization" {
			t.Errorf("Expected header name Authorization, got %q", provider.headerName)
		}
		if provider.userID != testdata.TestUserID {
			t.Errorf("Expected user %q, got %q", testdata.TestUserID, provider.userID)
		}
		if got := len(provider.Challenge()); got != 32 {
			t.Errorf("Expected a 32 byte challenge, got %d", got)
		}
	})

	errCases := []struct {
		name      string
		publicKey string
		wantErr   string
	}{
		{
			name:      "not PEM",
			publicKey: "definitely not a key",
			wantErr:   "no PEM block",
		},
		{
			name:      "PEM with garbage DER",
			publicKey: "-----BEGIN PUBLIC KEY-----\naGVsbG8gd29ybGQ=\n-----END PUBLIC KEY-----",
			wantErr:   "parse public key",
		},
		{
			name:      "wrong key algorithm",
			publicKey: rsaPublicKeyPEM,
			wantErr:   "not an Ed25519 public key",
		},
	}

	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEd25519Provider(tc.publicKey, "Authorization", testdata.TestUserID)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestEd25519Middleware(t *testing.T) {
	provider := newTestProvider(t)
	signature := signChallenge(t, provider)

	testCases := []struct {
		name     string
		prepare  func(r *http.Request)
		wantUser bool
	}{
		{
			name:     "signature in header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", signature) },
			wantUser: true,
		},
		{
			name: "signature in cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: config.CookieAuthToken, Value: signature})
			},
			wantUser: true,
		},
		{
			name:    "no credentials",
			prepare: func(r *http.Request) {},
		},
		{
			name:    "header is not base64",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "%%%not-base64%%%") },
		},
		{
			name: "signature over the wrong bytes",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize)))
			},
		},
		{
			name: "undecodable cookie falls through",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: config.CookieAuthToken, Value: "***"})
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser model.UserID
			var authenticated bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, authenticated = UserID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
			tc.prepare(req)
			provider.Middleware()(next).ServeHTTP(httptest.NewRecorder(), req)

			if authenticated != tc.wantUser {
				t.Fatalf("Expected authenticated=%v, got %v", tc.wantUser, authenticated)
			}
			if tc.wantUser && gotUser != testdata.TestUserID {
				t.Errorf("Expected user %q, got %q", testdata.TestUserID, gotUser)
			}
		})
	}
}

func TestSessionUserID(t *testing.T) {
	provider := newTestProvider(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := provider.SessionUserID(req); err == nil {
		t.Error("Expected an error for an anonymous request")
	}

	req = req.WithContext(WithUserID(req.Context(), testdata.TestUserID))
	id, err := provider.SessionUserID(req)
	if err != nil {
		t.Fatalf("SessionUserID: %v", err)
	}
	if id != testdata.TestUserID {
		t.Errorf("Expected user %q, got %q", testdata.TestUserID, id)
	}
}

func TestRequireUser(t *testing.T) {
	provider := newTestProvider(t)

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/publish", nil)
		req = req.WithContext(WithUserID(req.Context(), testdata.TestUserID))

		rec := httptest.NewRecorder()
		id, err := provider.RequireUser(rec, req)
		if err != nil {
			t.Fatalf("RequireUser: %v", err)
		}
		if id != testdata.TestUserID {
			t.Errorf("Expected user %q, got %q", testdata.TestUserID, id)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Expected no error response, got %d", rec.Code)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := provider.RequireUser(rec, httptest.NewRequest(http.MethodPost, "/api/publish", nil))
		if err == nil {
			t.Fatal("Expected an error")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
		if got := rec.Header().Get(config.HHxRedirect); got != routes.AuthChallenge {
			t.Errorf("Expected redirect to the signing flow, got %q", got)
		}
	})
}

func TestChallengeRotation(t *testing.T) {
	provider := newTestProvider(t)

	first := provider.Challenge()
	signature, err := base64.StdEncoding.DecodeString(signChallenge(t, provider))
	if err != nil {
		t.Fatalf("Decode signature: %v", err)
	}
	if !provider.VerifySignature(signature) {
		t.Fatal("Expected the signature to verify before rotation")
	}

	// Callers get a copy; scribbling on it must not corrupt the state.
	first[0] ^= 0xff
	if !provider.VerifySignature(signature) {
		t.Fatal("Expected the provider's challenge to be isolated from callers")
	}

	if err := provider.RefreshChallenge(); err != nil {
		t.Fatalf("RefreshChallenge: %v", err)
	}
	if provider.VerifySignature(signature) {
		t.Error("Expected rotation to invalidate old signatures")
	}

	second := provider.Challenge()
	if len(second) != 32 {
		t.Errorf("Expected a 32 byte challenge after rotation, got %d", len(second))
	}
}

func TestEd25519HandleUserWebhook(t *testing.T) {
	provider := newTestProvider(t)

	rec := httptest.NewRecorder()
	provider.HandleUserWebhook(rec, httptest.NewRequest(http.MethodPost, routes.UserWebhook, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected the webhook to be a 200 no-op, got %d", rec.Code)
	}
}
