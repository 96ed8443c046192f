package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/panelapp/addressmapper/internal/config"
	"github.com/panelapp/addressmapper/internal/nonce"
)

// Claims is the payload of a partner token. On top of the registered claims
// (iss, iat, exp, jti) the partner adds its own identifiers: the external
// account ID, plus external user IDs in sub/aud on content requests.
type Claims struct {
	Account string `json:"account,omitempty"`
	jwt.RegisteredClaims
}

// SubjectUser returns the external ID of the user the request is about.
func (c *Claims) SubjectUser() string { return c.Subject }

// AudienceUser returns the external ID of the user making the request.
// The partner sends aud as a single value; jwt encodes it as a one-element list.
func (c *Claims) AudienceUser() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// Validator decodes and verifies tokens signed by the partner with the shared
// secret. All checks run in a fixed order, short-circuiting on the first
// failure; temporal validation is done here rather than by the jwt library so
// each failure maps to its own error.
type Validator struct {
	secret       []byte
	issuer       string
	enforceNonce bool
	nonces       nonce.Store
	parser       *jwt.Parser
	now          func() time.Time
}

func NewValidator(cfg config.PartnerConfig, nonces nonce.Store) *Validator {
	return &Validator{
		secret:       []byte(cfg.SharedSecret),
		issuer:       cfg.Issuer,
		enforceNonce: cfg.EnforceNonce,
		nonces:       nonces,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
}

// Validate decodes raw and checks it against the partner contract:
// signature, fixed issuer, future exp, iat before exp, fresh jti.
func (v *Validator) Validate(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissing
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrBadSignature
		}
		return nil, ErrMalformed
	}

	if claims.Issuer != v.issuer {
		return nil, ErrBadIssuer
	}

	now := v.now()
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		return nil, ErrExpired
	}

	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Before(claims.ExpiresAt.Time) {
		return nil, ErrBadIssuedAt
	}

	// jti must be present and not seen in the last 12 hours; checking it
	// records it
	if v.enforceNonce {
		if claims.ID == "" {
			return nil, ErrReplayedNonce
		}
		ok, err := v.nonces.CheckAndConsume(ctx, nonce.Incoming, claims.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrReplayedNonce
		}
	}

	return claims, nil
}

// RequestTTL is how long our outgoing Lookup API tokens stay valid.
const RequestTTL = 5 * time.Minute

// Signer mints short-lived tokens for our own requests to the partner's
// Lookup API: iss is our integration ID and jti is a nonce we have not used
// within the window, the mirror image of what Validate demands of the partner.
type Signer struct {
	secret        []byte
	integrationID string
	nonces        nonce.Store
	now           func() time.Time
}

func NewSigner(cfg config.PartnerConfig, nonces nonce.Store) *Signer {
	return &Signer{
		secret:        []byte(cfg.SharedSecret),
		integrationID: cfg.IntegrationID,
		nonces:        nonces,
		now:           time.Now,
	}
}

// Sign returns a signed request token with a fresh outgoing nonce.
func (s *Signer) Sign(ctx context.Context) (string, error) {
	jti, err := nonce.Fresh(ctx, s.nonces)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.integrationID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(RequestTTL)),
		ID:        jti,
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString(s.secret)
}
