package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/panelapp/addressmapper/internal/tokens"
	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/metrics"
)

// ClaimsKey is the gin context key under which verified claims are stored.
const ClaimsKey = "claims"

// Extractor pulls the raw token string out of a request. The partner delivers
// activation tokens in the Authorization header and content tokens in a query
// parameter, so the two routes install different extractors.
type Extractor func(c *gin.Context) string

// BearerToken extracts a token from an 'Authorization: Bearer <token>' header.
func BearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// QueryToken extracts a token from the named query parameter.
func QueryToken(param string) Extractor {
	return func(c *gin.Context) string {
		return c.Query(param)
	}
}

// ErrorRenderer writes the route-appropriate rejection response: the
// activation route answers in JSON, the content route embeds the failure in
// the panel HTML.
type ErrorRenderer func(c *gin.Context, err error)

// TokenAuth returns a Gin middleware that validates the partner token carried
// by the request. On success the decoded claims are stored under ClaimsKey;
// on failure the renderer writes the response and the chain is aborted.
func TokenAuth(v *tokens.Validator, extract Extractor, render ErrorRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.Validate(c.Request.Context(), extract(c))
		if err != nil {
			logger.Warnf("token validation failed for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			metrics.TokenValidations.WithLabelValues(errorLabel(err)).Inc()
			render(c, err)
			c.Abort()
			return
		}

		metrics.TokenValidations.WithLabelValues("ok").Inc()
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Claims retrieves the verified claims stored by TokenAuth.
func Claims(c *gin.Context) (*tokens.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokens.Claims)
	return claims, ok
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, tokens.ErrMissing):
		return "missing"
	case errors.Is(err, tokens.ErrMalformed):
		return "malformed"
	case errors.Is(err, tokens.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, tokens.ErrBadIssuer):
		return "bad_issuer"
	case errors.Is(err, tokens.ErrExpired):
		return "expired"
	case errors.Is(err, tokens.ErrBadIssuedAt):
		return "bad_issued_at"
	case errors.Is(err, tokens.ErrReplayedNonce):
		return "replayed_nonce"
	default:
		return "error"
	}
}
