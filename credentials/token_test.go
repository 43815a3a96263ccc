package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating EC key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling EC key: %v", err)
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	f, err := os.CreateTemp("", "apns-key-*.p8")
	if err != nil {
		t.Fatalf("creating temp key file: %v", err)
	}
	defer f.Close()
	if err := pem.Encode(f, block); err != nil {
		t.Fatalf("writing PEM: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestTokenCredentials_Caching(t *testing.T) {
	keyFile := writeTestKey(t)

	creds, err := NewTokenCredentials(keyFile, "KEYID1234", "TEAMID1234", WithTokenLifetime(30*time.Second))
	if err != nil {
		t.Fatalf("NewTokenCredentials: %v", err)
	}

	clock := time.Unix(1_700_000_000, 0)
	creds.now = func() time.Time { return clock }

	header0, ok, err := creds.AuthorizationHeader("any.topic")
	if err != nil || !ok {
		t.Fatalf("AuthorizationHeader at t=0: ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(header0, "bearer ") {
		t.Fatalf("expected bearer-prefixed header, got %q", header0)
	}

	clock = clock.Add(20 * time.Second)
	header20, _, err := creds.AuthorizationHeader("any.topic")
	if err != nil {
		t.Fatalf("AuthorizationHeader at t=20: %v", err)
	}
	if header20 != header0 {
		t.Errorf("expected cached token reused within lifetime, got different headers")
	}

	clock = clock.Add(20 * time.Second) // t=40, past the 30s lifetime
	header40, _, err := creds.AuthorizationHeader("any.topic")
	if err != nil {
		t.Fatalf("AuthorizationHeader at t=40: %v", err)
	}
	if header40 == header0 {
		t.Errorf("expected a fresh token past the lifetime window, got the same one")
	}

	raw := strings.TrimPrefix(header40, "bearer ")
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parsing signed token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["iss"] != "TEAMID1234" {
		t.Errorf("iss claim = %v, want TEAMID1234", claims["iss"])
	}
	if parsed.Header["kid"] != "KEYID1234" {
		t.Errorf("kid header = %v, want KEYID1234", parsed.Header["kid"])
	}

}

func TestTokenCredentials_TopicIgnoredInCache(t *testing.T) {
	keyFile := writeTestKey(t)
	creds, err := NewTokenCredentials(keyFile, "KEYID1234", "TEAMID1234")
	if err != nil {
		t.Fatalf("NewTokenCredentials: %v", err)
	}

	h1, _, _ := creds.AuthorizationHeader("com.example.app")
	h2, _, _ := creds.AuthorizationHeader("com.example.app.voip")
	if h1 != h2 {
		t.Errorf("expected the same cached token across topics, got different headers")
	}
}

func TestTokenCredentials_ConcurrentCallersSignOnce(t *testing.T) {
	keyFile := writeTestKey(t)

	var signs atomic.Int32
	creds, err := NewTokenCredentials(keyFile, "KEYID1234", "TEAMID1234",
		WithOnRegenerate(func() { signs.Add(1) }))
	if err != nil {
		t.Fatalf("NewTokenCredentials: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := creds.AuthorizationHeader("com.example.app"); err != nil {
				t.Errorf("AuthorizationHeader: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := signs.Load(); got != 1 {
		t.Errorf("signed %d tokens for 16 concurrent callers, want exactly 1", got)
	}
}

func TestCertificateCredentials_NoAuthorizationHeader(t *testing.T) {
	var c CertificateCredentials
	header, ok, err := c.AuthorizationHeader("com.example.app")
	if err != nil || ok || header != "" {
		t.Errorf("certificate credentials must never return a header, got (%q, %v, %v)", header, ok, err)
	}
}
