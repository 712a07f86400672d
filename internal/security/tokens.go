package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the signature checked out but exp has passed
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignatureInvalid means the token was not signed with our secret
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenInvalid covers malformed tokens, foreign algorithms and bad claims
	ErrTokenInvalid = errors.New("token invalid")
)

// opaqueTokenBytes is the entropy of refresh and reset tokens
const opaqueTokenBytes = 32

// UserInfo is the identity payload carried in access tokens
type UserInfo struct {
	ID int64 `json:"id"`
}

// AccessClaims are the claims of an access token
type AccessClaims struct {
	UserInfo *UserInfo `json:"userInfo,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens and generates opaque
// refresh and reset tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret. Access tokens live
// for ttl.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueAccessToken signs an access token for the account
func (t *TokenIssuer) IssueAccessToken(accountID int64) (string, error) {
	now := t.now()
	claims := AccessClaims{
		UserInfo: &UserInfo{ID: accountID},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses token and checks its signature, expiry and
// issuer. Errors are one of ErrTokenExpired, ErrTokenSignatureInvalid or
// ErrTokenInvalid.
func (t *TokenIssuer) VerifyAccessToken(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, t.keyFunc, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// keyFunc only hands out the secret for HMAC tokens, so "none" and
// asymmetric algorithms fail as invalid rather than as a bad signature
func (t *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}

// IssueOpaqueToken returns a random token for refresh and reset flows
func (t *TokenIssuer) IssueOpaqueToken() (string, error) {
	return GenerateOpaqueToken()
}

// GenerateOpaqueToken returns 32 random bytes encoded as unpadded base64url
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
