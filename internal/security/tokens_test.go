package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSubject = TokenSubject{
	EmployeeID: "emp-1",
	Email:      "jane.2026@example.com",
	Department: "HR",
	Role:       "MANAGER",
	FullName:   "Jane Doe",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	codec := NewTestTokenCodec(fixedClock(now))

	token, expiresAt, err := codec.Issue(testSubject)
	require.NoError(t, err)
	assert.Equal(t, now.Add(8*time.Hour), expiresAt)
	assert.Equal(t, "HS512", codec.Alg())

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, testSubject.Email, claims.Email)
	assert.Equal(t, testSubject.Email, claims.Subject)
	assert.Equal(t, "HR", claims.Department)
	assert.Equal(t, "MANAGER", claims.Role)
	assert.Equal(t, "Jane Doe", claims.FullName)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
}

func TestTokenCodec_TokensAreUnique(t *testing.T) {
	codec := NewTestTokenCodec(fixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))

	a, _, err := codec.Issue(testSubject)
	require.NoError(t, err)
	b, _, err := codec.Issue(testSubject)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, HashToken(a), HashToken(b))
}

func TestTokenCodec_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	token, _, err := NewTestTokenCodec(fixedClock(issued)).Issue(testSubject)
	require.NoError(t, err)

	_, err = NewTestTokenCodec(fixedClock(issued.Add(8*time.Hour - time.Second))).Verify(token)
	require.NoError(t, err)

	_, err = NewTestTokenCodec(fixedClock(issued.Add(8*time.Hour + time.Second))).Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_SignatureMismatch(t *testing.T) {
	now := time.Now()
	token, _, err := NewTestTokenCodec(fixedClock(now)).Issue(testSubject)
	require.NoError(t, err)

	other, err := NewHMACTokenCodec([]byte("another-secret-another-secret-xx"), "test-issuer", 8*time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenSignatureMismatch)

	// flip a byte in the signature
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	_, err = NewTestTokenCodec(fixedClock(now)).Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenSignatureMismatch)
}

func TestTokenCodec_WrongAlgorithmRejected(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testSubject.Email,
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		EmployeeID: "emp-1",
	}
	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	require.NoError(t, err)

	_, err = NewTestTokenCodec(nil).Verify(hs256)
	assert.ErrorIs(t, err, ErrTokenSignatureMismatch)
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := NewTestTokenCodec(nil)
	for _, tok := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		_, err := codec.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
	}
}

func TestTokenCodec_WrongIssuerIsMalformed(t *testing.T) {
	now := time.Now()
	other, err := NewHMACTokenCodec([]byte(TestSecret), "someone-else", 8*time.Hour)
	require.NoError(t, err)
	token, _, err := other.Issue(testSubject)
	require.NoError(t, err)

	_, err = NewTestTokenCodec(fixedClock(now)).Verify(token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokenCodec_IssueRequiresIdentity(t *testing.T) {
	_, _, err := NewTestTokenCodec(nil).Issue(TokenSubject{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestNewHMACTokenCodec_ShortSecret(t *testing.T) {
	_, err := NewHMACTokenCodec([]byte("short"), "iss", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewTokenCodec_KeyPairRSA(t *testing.T) {
	codec, err := NewTokenCodec("", testPrivateKeyPEM, testPublicKeyPEM, "iss", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "RS256", codec.Alg())

	token, _, err := codec.Issue(testSubject)
	require.NoError(t, err)
	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
}

func TestNewKeyPairTokenCodec_ECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	codec, err := NewKeyPairTokenCodec(key, &key.PublicKey, "iss", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "ES256", codec.Alg())

	token, _, err := codec.Issue(testSubject)
	require.NoError(t, err)
	_, err = codec.Verify(token)
	require.NoError(t, err)
}

func TestNewKeyPairTokenCodec_MismatchedKeys(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rsaPub, err := ParsePublicKey(testPublicKeyPEM)
	require.NoError(t, err)

	_, err = NewKeyPairTokenCodec(ec, rsaPub, "iss", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewTokenCodec_FallsBackToSecret(t *testing.T) {
	codec, err := NewTokenCodec(TestSecret, testPrivateKeyPEM, "", "iss", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "HS512", codec.Alg())
}
