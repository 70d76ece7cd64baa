package apns

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Test Helpers
// =============================================================================

func generateP256PEM(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal PKCS8: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return string(pemBytes), key
}

// =============================================================================
// Signing
// =============================================================================

func TestTokenSignerSign(t *testing.T) {
	pemKey, key := generateP256PEM(t)

	signer, err := NewTokenSigner("TEAM123456", "KEY1234567", pemKey)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	now := time.Unix(1700000000, 0)
	bearer, err := signer.Sign(now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	segments := strings.Split(bearer, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var header map[string]string
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if header["alg"] != "ES256" || header["kid"] != "KEY1234567" || header["typ"] != "JWT" {
		t.Fatalf("unexpected header: %v", header)
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if claims["iss"] != "TEAM123456" {
		t.Fatalf("unexpected issuer: %v", claims["iss"])
	}
	if int64(claims["iat"].(float64)) != now.Unix() {
		t.Fatalf("unexpected iat: %v", claims["iat"])
	}

	sig, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("expected 64-byte signature, got %d", len(sig))
	}

	// The signature must verify over the first two segments.
	digest := sha256.Sum256([]byte(segments[0] + "." + segments[1]))
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(&key.PublicKey, digest[:], r, s) {
		t.Fatal("token signature does not verify")
	}
}

func TestTokenSignerEscapedNewlines(t *testing.T) {
	pemKey, _ := generateP256PEM(t)

	// .env style: literal backslash-n instead of newlines.
	escaped := strings.ReplaceAll(pemKey, "\n", `\n`)

	if _, err := NewTokenSigner("TEAM123456", "KEY1234567", escaped); err != nil {
		t.Fatalf("NewTokenSigner with escaped newlines: %v", err)
	}
}

// =============================================================================
// Credential errors
// =============================================================================

func TestTokenSignerRejectsGarbageKey(t *testing.T) {
	if _, err := NewTokenSigner("TEAM123456", "KEY1234567", "not a key"); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}

func TestTokenSignerRejectsNonECKey(t *testing.T) {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(edKey)
	if err != nil {
		t.Fatalf("marshal PKCS8: %v", err)
	}
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	if _, err := NewTokenSigner("TEAM123456", "KEY1234567", pemKey); err == nil {
		t.Fatal("expected error for non-ECDSA key")
	}
}
