package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/panelapp/addressmapper/internal/identity"
	"github.com/panelapp/addressmapper/internal/tokens"
	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/middleware"
)

// PanelsHandler serves the partner-embedded panel endpoints. Every request
// carries a partner-signed token; activation speaks JSON, content speaks HTML.
type PanelsHandler struct {
	validator  *tokens.Validator
	reconciler *identity.Reconciler
}

func NewPanelsHandler(v *tokens.Validator, r *identity.Reconciler) *PanelsHandler {
	return &PanelsHandler{validator: v, reconciler: r}
}

// Register routes under /panels. Extra middleware (the rate limiter) runs
// after token validation so it sees verified claims and can throttle per
// partner account rather than per IP.
func (h *PanelsHandler) Register(r *gin.Engine, extra ...gin.HandlerFunc) {
	p := r.Group("/panels")
	p.POST("/activation", h.chain(
		middleware.TokenAuth(h.validator, middleware.BearerToken, renderJSONError),
		extra, h.Activation)...)
	p.GET("/content", h.chain(
		middleware.TokenAuth(h.validator, middleware.QueryToken("jwt"), renderHTMLError),
		extra, h.Content)...)
}

func (h *PanelsHandler) chain(auth gin.HandlerFunc, extra []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := append([]gin.HandlerFunc{auth}, extra...)
	return append(out, handler)
}

// partnerMessage maps an internal error to the short text we show the
// partner. Full detail stays in our logs; the partner only needs enough to
// tell a bad token from a replayed one.
func partnerMessage(err error) string {
	switch {
	case errors.Is(err, tokens.ErrMissing):
		return "Missing token"
	case errors.Is(err, tokens.ErrMalformed), errors.Is(err, tokens.ErrBadSignature):
		return "Invalid token"
	case errors.Is(err, tokens.ErrBadIssuer):
		return "Invalid token issuer"
	case errors.Is(err, tokens.ErrExpired):
		return "Token is expired"
	case errors.Is(err, tokens.ErrBadIssuedAt):
		return "Invalid token timestamps"
	case errors.Is(err, tokens.ErrReplayedNonce):
		return "Token has already been used"
	case errors.Is(err, identity.ErrNotFound):
		return "Unknown account or user"
	default:
		return "Request could not be processed"
	}
}

// renderJSONError is the activation-side error shape the partner expects.
func renderJSONError(c *gin.Context, err error) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": partnerMessage(err)}})
}

// Activation is called by the partner when a customer installs the
// integration. It maps the partner account onto one of ours (creating it if
// allowed) and then reconciles the account's whole user roster so the content
// panel has addresses to show from the first page load.
func (h *PanelsHandler) Activation(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		renderJSONError(c, tokens.ErrMissing)
		return
	}

	account, err := h.reconciler.ResolveAccount(c.Request.Context(), claims.Account, true)
	if err != nil {
		logger.Warnf("activation: account %q not resolved: %v", claims.Account, err)
		// the partner treats any activation failure as unauthorized
		status := http.StatusInternalServerError
		if errors.Is(err, identity.ErrNotFound) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": gin.H{"message": partnerMessage(err)}})
		return
	}

	h.reconciler.ReconcileAll(c.Request.Context(), account)

	c.Status(http.StatusOK)
}
