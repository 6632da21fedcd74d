package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind discriminates the purpose of an issued token. A token is only ever
// accepted by the flow matching its kind.
type Kind string

const (
	KindAccess            Kind = "access"
	KindCode              Kind = "code"
	KindResetPassword     Kind = "reset-password"
	KindEmailVerification Kind = "email-verification"
)

// Default lifetimes per kind
const (
	DefaultAccessTokenTTL       = 60 * time.Minute
	DefaultCodeTTL              = 10 * time.Minute
	DefaultResetPasswordTTL     = 60 * time.Minute
	DefaultEmailVerificationTTL = 60 * time.Minute
)

// Valid reports whether k is one of the known token kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindCode, KindResetPassword, KindEmailVerification:
		return true
	}
	return false
}

// Claims is the payload carried by a token.
type Claims struct {
	ClientID  string
	Username  string
	Email     string
	Scopes    []string
	ReturnURL string
}

// Token is the verified, decoded form of an issued token
type Token struct {
	Claims
	Kind      Kind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Is reports whether t is a decoded token of the given kind. It is safe to call on nil.
func (t *Token) Is(kind Kind) bool {
	return t != nil && t.Kind == kind
}

// jwtClaims is the wire form of a token
type jwtClaims struct {
	Type      Kind     `json:"type"`
	ClientID  string   `json:"client_id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	Scopes    []string `json:"scopes"`
	ReturnURL string   `json:"return_url,omitempty"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed, expiring tokens of every kind
type Codec struct {
	signer  Signer
	issuer  string
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc sets the clock used for issuance and expiry checks (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// WithIssuer stamps tokens with an "iss" claim and requires it on decode
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

func NewCodec(signer Signer, options ...CodecOption) *Codec {
	c := &Codec{
		signer:  signer,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Encode signs claims as a token of the given kind that expires ttl from now
func (c *Codec) Encode(kind Kind, claims Claims, ttl time.Duration) (string, error) {
	if !kind.Valid() {
		return "", errors.Errorf("[Codec.Encode] unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", errors.Errorf("[Codec.Encode] ttl must be positive, got %s", ttl)
	}

	now := c.nowFunc()
	wire := jwtClaims{
		Type:      kind,
		ClientID:  claims.ClientID,
		Username:  claims.Username,
		Email:     claims.Email,
		Scopes:    claims.Scopes,
		ReturnURL: claims.ReturnURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt(now, ttl)),
		},
	}

	signed, err := c.signer.Sign(wire)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encode] sign")
	}
	return signed, nil
}

// expiresAt is now+ttl rounded up to the whole second, the precision of the
// "exp" claim, so a token never expires before its ttl has elapsed
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if truncated := exp.Truncate(jwt.TimePrecision); truncated.Before(exp) {
		return truncated.Add(jwt.TimePrecision)
	}
	return exp
}

// Decode verifies signature and expiry and returns the decoded token.
// Any failure, whether malformed, forged or expired, yields nil.
// Decode does not check the kind; callers compare Token.Kind for the flow they serve.
func (c *Codec) Decode(raw string) *Token {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	wire := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(raw, wire, c.signer.GetVerificationKey, options...)
	if err != nil || !parsed.Valid {
		return nil
	}
	if !wire.Type.Valid() || wire.ExpiresAt == nil {
		return nil
	}

	decoded := &Token{
		Claims: Claims{
			ClientID:  wire.ClientID,
			Username:  wire.Username,
			Email:     wire.Email,
			Scopes:    wire.Scopes,
			ReturnURL: wire.ReturnURL,
		},
		Kind:      wire.Type,
		ID:        wire.ID,
		ExpiresAt: wire.ExpiresAt.Time,
	}
	if wire.IssuedAt != nil {
		decoded.IssuedAt = wire.IssuedAt.Time
	}
	return decoded
}
