package utils // package utils provides helper functions for token creation, verification and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is returned whenever an access or email token fails
// verification: bad signature, malformed payload, missing subject or
// past expiry. Callers never learn which of these happened.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short‑lived and carried
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshSecret represents a long‑lived opaque secret used to obtain new
// access tokens.  Raw is returned to the client exactly once; only the
// SHA‑256 hash of Raw is ever persisted.
type RefreshSecret struct {
	Raw string    // raw secret returned to the client
	Exp time.Time // UTC expiration time
}

// Claims decoded from a verified access or email token.
type Claims struct {
	Subject string    // the sub claim (username for access tokens, email for email tokens)
	Exp     time.Time // expiry embedded in the token
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the username used as the token subject, and a TTL in
// minutes.  The JWT carries the standard claims sub, exp and iat.
func NewAccessToken(secret, username string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": username,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewEmailToken signs a confirmation token carrying an email address as
// its subject.  Email tokens live for days rather than minutes so that a
// confirmation link stays usable, and they are verified through the same
// signing secret as access tokens.
func NewEmailToken(secret, email string, ttlDays int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": email,
		"exp": now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyToken parses and validates a signed token and returns its claims.
// Verification fails as one unit: an invalid signature, a non-HMAC signing
// method, a missing subject or an elapsed expiry all map to ErrInvalidToken.
func VerifyToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC before touching claims.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{Subject: sub, Exp: exp.Time.UTC()}, nil
}

// NewRefreshSecret returns a cryptographically secure opaque secret (raw)
// and its expiration time.  The secret is 32 random bytes (256 bits of
// entropy) encoded base64url without padding, so it is safe to put in a
// JSON body or a query string.  ttlDays controls how long the secret is
// accepted for rotation.
func NewRefreshSecret(ttlDays int) (RefreshSecret, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return RefreshSecret{}, err
	}
	return RefreshSecret{
		Raw: base64.RawURLEncoding.EncodeToString(buf),
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh secret as a
// hex string.  Storing only the hash in the database prevents attackers
// from using stolen database entries to refresh sessions.  The input is
// already high-entropy, so no salt is needed and the hash stays
// deterministic for lookups.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
