// Command sign is the login client for the editor's ed25519 auth flow.
//
// With -url it fetches a challenge from a running editor, signs it and posts
// the signature back, printing the resulting auth cookie. Without -url it
// runs an interactive loop that signs pasted challenges.
package main

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}

func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s is not an Ed25519 key", path)
	}
	return key, nil
}

// login performs the challenge/verify handshake and returns the auth cookie.
func login(baseURL string, privKey ed25519.PrivateKey) (*http.Cookie, error) {
	resp, err := http.Get(baseURL + "/auth/challenge")
	if err != nil {
		return nil, fmt.Errorf("fetching challenge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("challenge endpoint returned %s", resp.Status)
	}

	var body struct {
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding challenge response: %w", err)
	}

	challenge, err := base64.StdEncoding.DecodeString(body.Challenge)
	if err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}

	signature := ed25519.Sign(privKey, challenge)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/verify", bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", base64.StdEncoding.EncodeToString(signature))

	verifyResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifying signature: %w", err)
	}
	defer verifyResp.Body.Close()

	if verifyResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify endpoint returned %s", verifyResp.Status)
	}

	for _, cookie := range verifyResp.Cookies() {
		if cookie.Name == "auth_token" {
			return cookie, nil
		}
	}
	return nil, fmt.Errorf("verify response carried no auth_token cookie")
}

// interactive signs challenges pasted on stdin until EOF or "quit".
func interactive(privKey ed25519.PrivateKey) {
	fmt.Println("Enter challenges one by one. Type 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("Enter challenge (base64): "))
		if !scanner.Scan() {
			break
		}

		challengeB64 := strings.TrimSpace(scanner.Text())
		if challengeB64 == "" {
			continue
		}
		if challengeB64 == "quit" {
			break
		}

		challenge, err := base64.StdEncoding.DecodeString(challengeB64)
		if err != nil {
			fmt.Println(errorStyle.Render("invalid base64"))
			continue
		}

		signature := ed25519.Sign(privKey, challenge)
		fmt.Println(outputStyle.Render("Signature: " + base64.StdEncoding.EncodeToString(signature)))
	}

	if err := scanner.Err(); err != nil {
		fail("reading input: %v", err)
	}
}

func main() {
	keyPath := flag.String("key", "privkey.pem", "path to the ed25519 private key PEM")
	baseURL := flag.String("url", "", "editor base URL; when set, performs the full login handshake")
	flag.Parse()

	privKey, err := readPrivateKey(*keyPath)
	if err != nil {
		fail("loading private key: %v", err)
	}

	if *baseURL != "" {
		cookie, err := login(strings.TrimRight(*baseURL, "/"), privKey)
		if err != nil {
			fail("login failed: %v", err)
		}
		fmt.Println(outputStyle.Render("Logged in. Cookie: " + cookie.Name + "=" + cookie.Value))
		return
	}

	interactive(privKey)
}
