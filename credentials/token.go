package credentials

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime is how long a signed JWT stays valid before
// TokenCredentials mints a fresh one. APNs allows reuse for up to 60
// minutes; 45 minutes leaves generous slack against clock skew.
const DefaultTokenLifetime = 2700 * time.Second

// DefaultAlgorithm is the only signing algorithm APNs currently accepts.
const DefaultAlgorithm = "ES256"

// TokenCache lets the signed JWT be shared across more than one
// TokenCredentials instance or process (e.g. several dispatcher replicas
// signing for the same team and key). The default, used when no cache is
// supplied, is an in-process mutex-guarded cache.
type TokenCache interface {
	Get() (token string, issuedAt time.Time, ok bool)
	Set(token string, issuedAt time.Time)
}

// memoryTokenCache is the default TokenCache: a single cached token guarded
// by a mutex, shared by every caller of the TokenCredentials it belongs to.
type memoryTokenCache struct {
	mu       sync.Mutex
	token    string
	issuedAt time.Time
	has      bool
}

func (c *memoryTokenCache) Get() (string, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.issuedAt, c.has
}

func (c *memoryTokenCache) Set(token string, issuedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.issuedAt, c.has = token, issuedAt, true
}

// TokenCredentials authenticates to APNs with a signed JWT bearer token
// (the ".p8" key APNs issues). Unlike certificate credentials, the same
// token is reused across every topic: it carries no topic claim, so
// caching it per topic (as some early client libraries did) only costs
// extra signing operations for no benefit.
type TokenCredentials struct {
	key       *ecdsa.PrivateKey
	keyID     string
	teamID    string
	algorithm string
	lifetime  time.Duration

	cache TokenCache

	// signMu serializes regeneration so two concurrent callers past the
	// expiry boundary sign at most once between them.
	signMu sync.Mutex

	now func() time.Time

	// onRegenerate, if set, is called each time a new JWT is actually
	// signed (not on cache hits). Dispatcher wires this to its metrics
	// recorder's TokensRegenerated counter.
	onRegenerate func()
}

// TokenOption configures a TokenCredentials at construction.
type TokenOption func(*TokenCredentials)

// WithAlgorithm overrides the JWT signing algorithm. APNs only documents
// ES256 support; this exists for forward compatibility, not as an
// invitation to pick something APNs will reject.
func WithAlgorithm(algorithm string) TokenOption {
	return func(t *TokenCredentials) { t.algorithm = algorithm }
}

// WithTokenLifetime overrides how long a signed token is reused before
// TokenCredentials mints a new one.
func WithTokenLifetime(lifetime time.Duration) TokenOption {
	return func(t *TokenCredentials) { t.lifetime = lifetime }
}

// WithTokenCache overrides the default in-process cache, e.g. with a
// Redis-backed cache shared across dispatcher processes.
func WithTokenCache(cache TokenCache) TokenOption {
	return func(t *TokenCredentials) { t.cache = cache }
}

// WithOnRegenerate registers a callback invoked every time a fresh JWT is
// signed, for callers that want to observe the regeneration rate (e.g. a
// metrics counter) without reimplementing the caching logic.
func WithOnRegenerate(fn func()) TokenOption {
	return func(t *TokenCredentials) { t.onRegenerate = fn }
}

// SetOnRegenerate attaches fn after construction, e.g. from NewDispatcher
// once a metrics.Recorder is known. It composes with any callback already
// set via WithOnRegenerate rather than replacing it.
func (t *TokenCredentials) SetOnRegenerate(fn func()) {
	if t.onRegenerate == nil {
		t.onRegenerate = fn
		return
	}
	prev := t.onRegenerate
	t.onRegenerate = func() {
		prev()
		fn()
	}
}

// NewTokenCredentials loads the ES256 signing key from a PEM file (the
// ".p8" file downloaded once from the Apple Developer portal) and returns
// credentials that mint and cache bearer JWTs for keyID/teamID.
func NewTokenCredentials(keyFile, keyID, teamID string, opts ...TokenOption) (*TokenCredentials, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("apns: reading signing key file: %w", err)
	}
	key, err := parseECPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("apns: parsing signing key: %w", err)
	}

	t := &TokenCredentials{
		key:       key,
		keyID:     keyID,
		teamID:    teamID,
		algorithm: DefaultAlgorithm,
		lifetime:  DefaultTokenLifetime,
		cache:     &memoryTokenCache{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func parseECPrivateKey(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported key encoding: %w", err)
	}
	key, ok := generic.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an EC private key")
	}
	return key, nil
}

// TLSConfig implements Credentials. Token authentication needs no client
// certificate; APNs authorizes the request from the bearer header alone.
func (t *TokenCredentials) TLSConfig() (*tls.Config, error) {
	return &tls.Config{MinVersion: tls.VersionTLS12}, nil
}

// AuthorizationHeader implements Credentials, returning "bearer <jwt>".
// topic is accepted to satisfy the Credentials interface but ignored: the
// JWT does not encode a topic, so a single shared token serves every
// topic a given key/team is authorized for.
func (t *TokenCredentials) AuthorizationHeader(topic string) (string, bool, error) {
	token, err := t.jwt()
	if err != nil {
		return "", false, err
	}
	return "bearer " + token, true, nil
}

// jwt returns the cached token if it is still fresh, regenerating it
// exactly once per expiry boundary even if multiple goroutines race past
// the staleness check at the same time.
func (t *TokenCredentials) jwt() (string, error) {
	now := t.now()
	if token, issuedAt, ok := t.cache.Get(); ok && now.Before(issuedAt.Add(t.lifetime)) {
		return token, nil
	}

	t.signMu.Lock()
	defer t.signMu.Unlock()

	now = t.now()
	if token, issuedAt, ok := t.cache.Get(); ok && now.Before(issuedAt.Add(t.lifetime)) {
		return token, nil
	}

	method := jwt.GetSigningMethod(t.algorithm)
	if method == nil {
		return "", fmt.Errorf("apns: unsupported token algorithm %q", t.algorithm)
	}
	claims := jwt.MapClaims{
		"iss": t.teamID,
		"iat": now.Unix(),
	}
	signed := jwt.NewWithClaims(method, claims)
	signed.Header["kid"] = t.keyID

	token, err := signed.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("apns: signing provider token: %w", err)
	}
	t.cache.Set(token, now)
	if t.onRegenerate != nil {
		t.onRegenerate()
	}
	return token, nil
}
