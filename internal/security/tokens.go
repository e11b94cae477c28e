package security

import (
	"context"
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired or fails signature, issuer or audience checks.
var ErrInvalidToken = errors.New("invalid token")

// DefaultLeeway absorbs clock skew between the token issuer and this service.
const DefaultLeeway = 30 * time.Second

// Claims are the verified claims of an API access token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// TokenVerifier validates RS256 or ES256 access tokens issued by an external identity provider.
type TokenVerifier struct {
	publicKey crypto.PublicKey
	alg       string
	issuer    string
	audience  string
	leeway    time.Duration
}

// NewTokenVerifier returns a verifier for tokens signed by the holder of pub's private key.
// Only the algorithm matching the key type is accepted.
func NewTokenVerifier(pub crypto.PublicKey, issuer, audience string) (*TokenVerifier, error) {
	alg := KeyAlg(pub)
	if alg == "" {
		return nil, ErrInvalidKey
	}
	return &TokenVerifier{publicKey: pub, alg: alg, issuer: issuer, audience: audience, leeway: DefaultLeeway}, nil
}

// LoadTokenVerifier parses a PEM public key (inline or path) and returns a verifier for it.
func LoadTokenVerifier(publicKeyPEM, issuer, audience string) (*TokenVerifier, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return NewTokenVerifier(pub, issuer, audience)
}

// Verify parses tokenString and checks signature, algorithm, expiry, issuer and audience.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return v.publicKey, nil },
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns ctx carrying verified claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the verified claims in ctx, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
