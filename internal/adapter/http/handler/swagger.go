package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: {{.SpecURL}}, dom_id: '#swagger-ui', layout: 'BaseLayout',
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset]});
  </script>
</body>
</html>`))

// DocsHandler serves the OpenAPI document and a Swagger UI page pointing at it.
type DocsHandler struct {
	spec []byte
	etag string
}

// NewDocsHandler returns nil when spec is empty; the router then skips /swagger.
func NewDocsHandler(spec []byte) *DocsHandler {
	if len(spec) == 0 {
		return nil
	}
	sum := sha256.Sum256(spec)
	return &DocsHandler{spec: spec, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}
}

// Spec handles GET /swagger/spec.
func (h *DocsHandler) Spec(c *gin.Context) {
	c.Header("ETag", h.etag)
	if c.GetHeader("If-None-Match") == h.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.spec)
}

// UI handles GET /swagger.
func (h *DocsHandler) UI(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = docsPage.Execute(c.Writer, struct{ Title, SpecURL string }{
		Title:   "Zimba Booking API",
		SpecURL: "/swagger/spec",
	})
}
