package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks
var ErrInvalidToken = errors.New("invalid interview token")

// InterviewClaims represents the claims carried by an interview token
type InterviewClaims struct {
	InterviewID string `json:"interview_id"`
	MeetingCode string `json:"meeting_code"`
	jwt.RegisteredClaims
}

// Issuer signs and validates interview tokens with a shared HMAC secret
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an issuer for the given secret
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue generates a token for one interview that expires at expiresAt
func (i *Issuer) Issue(meetingCode, interviewID string, expiresAt time.Time) (string, error) {
	if interviewID == "" {
		return "", errors.New("interview id is required")
	}

	claims := &InterviewClaims{
		InterviewID: interviewID,
		MeetingCode: meetingCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   interviewID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(i.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate validates a token and returns its claims
func (i *Issuer) Validate(tokenString string) (*InterviewClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InterviewClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*InterviewClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.InterviewID == "" {
		return nil, fmt.Errorf("%w: missing interview id", ErrInvalidToken)
	}
	return claims, nil
}
