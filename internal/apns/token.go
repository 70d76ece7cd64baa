package apns

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"
)

// fixedSignatureWidth is the r||s signature length for P-256: two 32-byte
// halves.
const fixedSignatureWidth = 64

// TokenSigner mints the short-lived bearer token APNs expects in the
// authorization header. The token is ES256-signed with the .p8 key from the
// Apple developer portal.
//
// The dispatcher signs once per run and reuses the token for every send in
// that run; nothing is cached across runs.
type TokenSigner struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
}

// NewTokenSigner parses the PEM PKCS8 P-256 key up front so that bad
// credentials fail at startup instead of on the first send.
//
// The key in .env often carries literal \n escapes instead of newlines, so
// those are normalized first (same treatment the Firebase SDKs need).
func NewTokenSigner(teamID, keyID, privateKeyPEM string) (*TokenSigner, error) {
	privateKeyPEM = strings.ReplaceAll(privateKeyPEM, `\n`, "\n")

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("parse APNs private key: no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse APNs private key: %w", err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parse APNs private key: not an ECDSA key")
	}

	return &TokenSigner{teamID: teamID, keyID: keyID, key: key}, nil
}

// Sign builds the compact header.claims.signature token for the given
// wall-clock time. Segments are URL-safe base64 without padding, and the
// DER signature from the crypto API is converted to the 64-byte fixed-width
// form APNs requires.
func (s *TokenSigner) Sign(now time.Time) (string, error) {
	header, err := json.Marshal(map[string]string{
		"alg": "ES256",
		"kid": s.keyID,
		"typ": "JWT",
	})
	if err != nil {
		return "", fmt.Errorf("marshal token header: %w", err)
	}

	claims, err := json.Marshal(map[string]interface{}{
		"iss": s.teamID,
		"iat": now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal token claims: %w", err)
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(claims)

	digest := sha256.Sum256([]byte(signingInput))
	der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign provider token: %w", err)
	}

	sig, err := SignatureToFixedWidth(der, fixedSignatureWidth)
	if err != nil {
		return "", fmt.Errorf("encode provider token signature: %w", err)
	}

	return signingInput + "." + enc.EncodeToString(sig), nil
}
