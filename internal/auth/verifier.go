// Package auth verifies operator bearer tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"orderbridge/internal/config"
)

// Verifier validates operator JWTs.
// Supports modes: none (every caller is an operator), hmac (HS256).
type Verifier struct {
	Mode       string
	HMACSecret []byte
	now        func() time.Time
}

type Principal struct {
	Subject string
	Role    string
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrBadToken     = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

func New(cfg config.AuthConfig) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "none"
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(cfg.HMACSecret), now: time.Now}
}

// Enabled reports whether requests must carry a token.
func (v *Verifier) Enabled() bool { return v != nil && v.Mode != "none" }

func (v *Verifier) Verify(token string) (Principal, error) {
	if !v.Enabled() {
		return Principal{Subject: "anonymous", Role: "operator"}, nil
	}
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, ErrBadToken
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, ErrBadToken
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, ErrBadToken
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, ErrBadToken
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, ErrBadToken
	}
	switch v.Mode {
	case "hmac":
		if hdr.Alg != "HS256" {
			return Principal{}, errors.New("unsupported alg for hmac")
		}
		if !hmac.Equal(hs256(v.HMACSecret, segs[0]+"."+segs[1]), sig) {
			return Principal{}, ErrBadToken
		}
	default:
		return Principal{}, errors.New("unsupported auth mode")
	}

	var claims struct {
		Sub  string  `json:"sub"`
		Role string  `json:"role"`
		Exp  float64 `json:"exp"`
	}
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, ErrBadToken
	}
	if claims.Exp > 0 && v.now().Unix() >= int64(claims.Exp) {
		return Principal{}, ErrExpired
	}
	role := strings.ToLower(claims.Role)
	if role == "" {
		role = "operator"
	}
	return Principal{Subject: claims.Sub, Role: role}, nil
}

// SignHS256 issues a token the hmac mode accepts. Used by tooling and tests.
func SignHS256(secret []byte, claims map[string]any) (string, error) {
	hdr := b64urlEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := hdr + "." + b64urlEncode(body)
	return input + "." + b64urlEncode(hs256(secret, input)), nil
}

func hs256(secret []byte, input string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func b64urlEncode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
