package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/panelapp/addressmapper/internal/identity"
	"github.com/panelapp/addressmapper/internal/tokens"
	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/middleware"
)

var contentTmpl = template.Must(template.New("content").Parse(`<!DOCTYPE html>
<html>
<head><title>Address Map</title></head>
<body>
<div class="panel">
  <h2>{{.Viewed.FirstName}} {{.Viewed.LastName}}</h2>
  <div id="map" data-lat="{{.Viewed.Lat}}" data-lng="{{.Viewed.Lng}}"></div>
  <p class="viewer">Viewing as {{if .Viewer.Username}}{{.Viewer.Username}}{{else}}{{.Viewer.FirstName}}{{end}}</p>
</div>
</body>
</html>
`))

var errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Address Map</title></head>
<body>
<div class="error-box"><p>{{.Message}}</p></div>
</body>
</html>
`))

// renderHTMLMessage writes the failure into the panel body itself. The panel
// is an iframe inside the partner's page, so a bare status code would show
// the customer a blank box.
func renderHTMLMessage(c *gin.Context, status int, msg string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if terr := errorTmpl.Execute(c.Writer, gin.H{"Message": msg}); terr != nil {
		logger.Errorf("content: render error page: %v", terr)
	}
	c.Abort()
}

// renderHTMLError is the content-side token rejection renderer.
func renderHTMLError(c *gin.Context, err error) {
	renderHTMLMessage(c, http.StatusUnauthorized, partnerMessage(err))
}

// Content renders the embedded panel body. The viewed user (sub) must exist
// or be creatable; the viewing user (aud) falls back to a guest placeholder
// so the panel still renders for partner-side users we have never seen.
func (h *PanelsHandler) Content(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		renderHTMLError(c, tokens.ErrMissing)
		return
	}
	ctx := c.Request.Context()

	// The account must already be mapped; activation is what maps it. A
	// content request for an unmapped account never triggers remote calls.
	account, err := h.reconciler.ResolveAccount(ctx, claims.Account, false)
	if err != nil {
		renderHTMLMessage(c, http.StatusUnauthorized, "This account is not activated")
		return
	}

	viewed, err := h.reconciler.ResolveUser(ctx, claims.SubjectUser(), account, true)
	if err != nil {
		logger.Warnf("content: viewed user %q not resolved: %v", claims.SubjectUser(), err)
		renderHTMLMessage(c, http.StatusNotFound, "This user is unknown")
		return
	}

	viewer, err := h.reconciler.ResolveUser(ctx, claims.AudienceUser(), account, true)
	if err != nil {
		viewer = identity.GuestUser()
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	data := gin.H{"Viewed": viewed, "Viewer": viewer}
	if terr := contentTmpl.Execute(c.Writer, data); terr != nil {
		logger.Errorf("content: render page: %v", terr)
	}
}
