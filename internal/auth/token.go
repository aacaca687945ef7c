package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidUnsubscribeToken = errors.New("invalid unsubscribe token")
	ErrUnsubscribeLinkExpired  = errors.New("unsubscribe link expired")
)

// UnsubscribeSigner issues and checks the tokens embedded in unsubscribe links.
type UnsubscribeSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewUnsubscribeSigner builds a signer. ttl bounds link validity.
func NewUnsubscribeSigner(secret string, ttl time.Duration) *UnsubscribeSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UnsubscribeSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type unsubscribeClaims struct {
	Payload string `json:"p"`
	jwt.RegisteredClaims
}

// GenerateToken signs payload.
func (s *UnsubscribeSigner) GenerateToken(payload string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("unsubscribe signing secret not configured")
	}
	claims := &unsubscribeClaims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken checks that token was issued for payload.
func (s *UnsubscribeSigner) VerifyToken(payload, tokenStr string) error {
	if len(s.secret) == 0 {
		return ErrInvalidUnsubscribeToken
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &unsubscribeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return ErrInvalidUnsubscribeToken
	}
	claims, ok := parsed.Claims.(*unsubscribeClaims)
	if !ok || !parsed.Valid || !ConstantTimeEqual(claims.Payload, payload) {
		return ErrInvalidUnsubscribeToken
	}
	return nil
}

// UnsubscribeLink is the data embedded in a confirmation email.
type UnsubscribeLink struct {
	URL       string
	ExpiresAt time.Time
}

// BuildLink returns baseURL/api/waitlist/unsubscribe with email, exp and token.
// exp is unix milliseconds, now + ttl.
func (s *UnsubscribeSigner) BuildLink(baseURL, email string) (UnsubscribeLink, error) {
	expiresAt := s.now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.UnixMilli(), 10)

	token, err := s.GenerateToken(unsubscribePayload(email, exp))
	if err != nil {
		return UnsubscribeLink{}, err
	}

	q := url.Values{}
	q.Set("email", email)
	q.Set("exp", exp)
	q.Set("token", token)
	return UnsubscribeLink{
		URL:       strings.TrimRight(baseURL, "/") + "/api/waitlist/unsubscribe?" + q.Encode(),
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyLink validates the query values of an unsubscribe link.
func (s *UnsubscribeSigner) VerifyLink(email, exp, token string) error {
	if email == "" || exp == "" || token == "" {
		return ErrInvalidUnsubscribeToken
	}
	expMillis, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidUnsubscribeToken
	}
	if err := s.VerifyToken(unsubscribePayload(email, exp), token); err != nil {
		return err
	}
	if s.now().After(time.UnixMilli(expMillis)) {
		return ErrUnsubscribeLinkExpired
	}
	return nil
}

func unsubscribePayload(email, exp string) string {
	return fmt.Sprintf("%s:%s", email, exp)
}

// ConstantTimeEqual compares two secrets. Lengths are checked first; the byte
// comparison does not short-circuit on the first difference.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
