package auth

import (
	"net/http"

	"github.com/vellumhq/vellum/internal/routes"
)

// RegisterEd25519Routes registers the challenge and verify endpoints used
// by the signing flow. Clients fetch a challenge, sign it with their private
// key and post the signature back to obtain the auth cookie.
func RegisterEd25519Routes(mux *http.ServeMux, provider *Ed25519Provider) {
	mux.HandleFunc(routes.AuthChallenge, Ed25519ChallengeHandler(provider))
	mux.HandleFunc(routes.AuthVerify, Ed25519VerifyHandler(provider))
}
