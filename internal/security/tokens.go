package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenMalformed is returned when a token cannot be decoded or its claims are unusable.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureMismatch is returned when the signature or algorithm does not match the codec's key.
	ErrTokenSignatureMismatch = errors.New("token signature mismatch")
	// ErrTokenExpired is returned when the token's absolute expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// TokenSubject is the principal data carried in an identity token.
type TokenSubject struct {
	EmployeeID string
	Email      string
	Department string
	Role       string
	FullName   string
}

// Claims holds the JWT claims of an identity token. Subject is the login email.
type Claims struct {
	jwt.RegisteredClaims
	EmployeeID string `json:"empId"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
	FullName   string `json:"fullName"`
}

// TokenCodec issues and verifies identity JWTs. It signs with HS512 over a shared secret
// or with RS256/ES256 over a PEM key pair. It never consults session state.
type TokenCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewHMACTokenCodec returns a codec signing with HS512 over secret.
func NewHMACTokenCodec(secret []byte, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: hmac secret must be at least 32 bytes", ErrInvalidKey)
	}
	key := append([]byte(nil), secret...)
	return &TokenCodec{
		method:    jwt.SigningMethodHS512,
		signKey:   key,
		verifyKey: key,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// NewKeyPairTokenCodec returns a codec signing with RS256 or ES256 depending on the key type.
func NewKeyPairTokenCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer string, ttl time.Duration) (*TokenCodec, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, fmt.Errorf("%w: public key does not match private key type", ErrInvalidKey)
	}
	return &TokenCodec{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// NewTokenCodec picks the key pair codec when both PEM values are set and the HMAC codec otherwise.
// privatePEM and publicPEM may be inline PEM or file paths.
func NewTokenCodec(secret, privatePEM, publicPEM, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if privatePEM == "" || publicPEM == "" {
		return NewHMACTokenCodec([]byte(secret), issuer, ttl)
	}
	signer, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return NewKeyPairTokenCodec(signer, pub, issuer, ttl)
}

// WithClock returns a copy of the codec that reads the current time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL is the absolute lifetime of issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Alg is the JWS algorithm name used for signing.
func (c *TokenCodec) Alg() string { return c.method.Alg() }

// Issue signs a new token for sub. Every token gets a random jti so two tokens issued
// in the same second for the same principal still differ.
func (c *TokenCodec) Issue(sub TokenSubject) (token string, expiresAt time.Time, err error) {
	if sub.EmployeeID == "" || sub.Email == "" {
		return "", time.Time{}, fmt.Errorf("%w: employee id and email are required", ErrTokenMalformed)
	}
	now := c.now().UTC().Truncate(time.Second)
	expiresAt = now.Add(c.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.Email,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		EmployeeID: sub.EmployeeID,
		Email:      sub.Email,
		Department: sub.Department,
		Role:       sub.Role,
		FullName:   sub.FullName,
	}
	token, err = jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
// Failures are ErrTokenMalformed, ErrTokenSignatureMismatch or ErrTokenExpired.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.verifyKey, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrTokenSignatureMismatch
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}
	if !parsed.Valid || claims.EmployeeID == "" || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
