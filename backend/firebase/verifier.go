package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidToken is returned when the token is malformed or its signature does not verify
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is not the configured project
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is not the configured project
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrJWKSFetchFailed is returned when the signing keys cannot be retrieved.
	// Callers should treat it as retryable, not as a rejected credential.
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

	errKeyNotFound = errors.New("signing key not found")
)

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Config holds configuration for Verifier
type Config struct {
	ProjectID   string
	JWKSURL     string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	Leeway      time.Duration

	// MinRefreshInterval bounds how often an unknown kid may force a key refetch
	MinRefreshInterval time.Duration
	HTTPClient         *http.Client
}

// Verifier validates Firebase ID tokens against Google's published keys
type Verifier struct {
	projectID  string
	issuer     string
	jwksURL    string
	httpClient *http.Client
	leeway     time.Duration
	now        func() time.Time

	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	lastFetch    time.Time
	minRefresh   time.Duration
	cacheMu      sync.RWMutex

	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex

	fetchGroup singleflight.Group
}

// NewVerifier creates a new Firebase ID token verifier
func NewVerifier(config Config) *Verifier {
	if config.CacheTTL == 0 {
		config.CacheTTL = 1 * time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}
	if config.Leeway == 0 {
		config.Leeway = 30 * time.Second
	}
	if config.MinRefreshInterval == 0 {
		config.MinRefreshInterval = time.Minute
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.HTTPTimeout}
	}

	return &Verifier{
		projectID:    config.ProjectID,
		issuer:       "https://securetoken.google.com/" + config.ProjectID,
		jwksURL:      config.JWKSURL,
		httpClient:   client,
		leeway:       config.Leeway,
		now:          time.Now,
		jwksCacheTTL: config.CacheTTL,
		minRefresh:   config.MinRefreshInterval,
		keyCache:     make(map[string]*rsa.PublicKey),
	}
}

// VerifyIDToken validates a raw ID token and returns the verified identity
func (v *Verifier) VerifyIDToken(ctx context.Context, tokenString string) (*VerifiedClaim, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	claims := &tokenClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("kid header not found")
		}
		return v.getPublicKey(ctx, kid)
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return parseClaims(claims, v.now(), v.leeway)
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrJWKSFetchFailed):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidAudience
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// FetchJWKS returns the key set, from cache while it is fresh
func (v *Verifier) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && v.now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	return v.refreshJWKS(ctx)
}

// refreshJWKS fetches the key set from the network. Concurrent callers share
// one request, which is bounded by the HTTP client timeout rather than by
// whichever caller started it.
func (v *Verifier) refreshJWKS(ctx context.Context) (*JWKS, error) {
	ch := v.fetchGroup.DoChan("jwks", func() (interface{}, error) {
		jwks, ttl, err := v.fetchRemote(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		now := v.now()
		v.cacheMu.Lock()
		v.jwksCache = jwks
		v.jwksCacheExp = now.Add(ttl)
		v.lastFetch = now
		v.cacheMu.Unlock()

		// keys for rotated-out kids must not outlive the set that carried them
		v.keyCacheMu.Lock()
		v.keyCache = make(map[string]*rsa.PublicKey)
		v.keyCacheMu.Unlock()

		return jwks, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*JWKS), nil
	}
}

func (v *Verifier) fetchRemote(ctx context.Context) (*JWKS, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, 0, fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}
	if len(jwks.Keys) == 0 {
		return nil, 0, fmt.Errorf("%w: empty key set", ErrJWKSFetchFailed)
	}

	ttl := v.jwksCacheTTL
	if maxAge, ok := parseMaxAge(resp.Header.Get("Cache-Control")); ok && maxAge < ttl {
		ttl = maxAge
	}
	return &jwks, ttl, nil
}

// parseMaxAge extracts max-age from a Cache-Control header
func parseMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil || secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// getPublicKey retrieves the public key for a given kid, refetching once on rotation
func (v *Verifier) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	key, err := v.lookupKey(jwks, kid)
	if errors.Is(err, errKeyNotFound) && v.canForceRefresh() {
		jwks, err = v.refreshJWKS(ctx)
		if err != nil {
			return nil, err
		}
		key, err = v.lookupKey(jwks, kid)
	}
	if err != nil {
		return nil, err
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = key
	v.keyCacheMu.Unlock()

	return key, nil
}

func (v *Verifier) canForceRefresh() bool {
	v.cacheMu.RLock()
	defer v.cacheMu.RUnlock()
	return v.now().Sub(v.lastFetch) >= v.minRefresh
}

func (v *Verifier) lookupKey(jwks *JWKS, kid string) (*rsa.PublicKey, error) {
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return jwkToRSAPublicKey(&jwks.Keys[i])
		}
	}
	return nil, fmt.Errorf("%w: kid %s", errKeyNotFound, kid)
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "" && jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %s", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	if len(eBytes) == 0 || len(eBytes) > 4 {
		return nil, fmt.Errorf("exponent of %d bytes is not supported", len(eBytes))
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// Ready reports whether signing keys can be obtained
func (v *Verifier) Ready(ctx context.Context) error {
	_, err := v.FetchJWKS(ctx)
	return err
}

// InvalidateCache drops cached keys so the next verification refetches them
func (v *Verifier) InvalidateCache() {
	v.cacheMu.Lock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	v.lastFetch = time.Time{}
	v.cacheMu.Unlock()

	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]*rsa.PublicKey)
	v.keyCacheMu.Unlock()
}
