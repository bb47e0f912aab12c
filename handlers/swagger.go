package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/castboard/castboard/internal/router"
	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints for the service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON built from the route table
func RegisterSwagger(rg gin.IRoutes, routes *router.Table) {
	doc := openAPI(routes)

	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>castboard — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// responses per method of the HTML routes
var routeResponses = map[string]gin.H{
	http.MethodGet: {
		"200": gin.H{"description": "rendered page (JSON with Accept: application/json)"},
		"404": gin.H{"description": "not found"},
	},
	http.MethodPost: {
		"303": gin.H{"description": "saved, redirect"},
		"401": gin.H{"description": "authentication required"},
		"403": gin.H{"description": "access denied"},
		"422": gin.H{"description": "form re-rendered with errors"},
	},
	http.MethodDelete: {
		"303": gin.H{"description": "redirect; the entity is removed only with a valid _token"},
		"404": gin.H{"description": "not found"},
	},
}

// openAPI documents every table route plus the operational endpoints.
func openAPI(routes *router.Table) gin.H {
	paths := gin.H{
		"/api/v1/me": gin.H{"get": gin.H{"summary": "Get the authenticated user", "responses": gin.H{"200": gin.H{"description": "principal and stored profile"}, "401": gin.H{"description": "not authenticated"}}}},
		"/health":    gin.H{"get": gin.H{"summary": "Liveness check", "responses": gin.H{"200": gin.H{"description": "healthy"}}}},
		"/ready":     gin.H{"get": gin.H{"summary": "Readiness check", "responses": gin.H{"200": gin.H{"description": "ready"}, "503": gin.H{"description": "not ready"}}}},
		"/metrics":   gin.H{"get": gin.H{"summary": "Prometheus metrics", "responses": gin.H{"200": gin.H{"description": "exposition format"}}}},
	}
	for _, r := range routes.Routes() {
		p, params := openAPIPath(r.Path)
		item, _ := paths[p].(gin.H)
		if item == nil {
			item = gin.H{}
			paths[p] = item
		}
		methods := append([]string(nil), r.Methods...)
		sort.Strings(methods)
		for _, m := range methods {
			op := gin.H{
				"operationId": r.Name + "_" + strings.ToLower(m),
				"summary":     r.Description,
				"responses":   routeResponses[m],
			}
			if len(params) > 0 {
				op["parameters"] = params
			}
			if m == http.MethodDelete {
				op["requestBody"] = gin.H{"content": gin.H{"application/x-www-form-urlencoded": gin.H{"schema": gin.H{
					"type":       "object",
					"properties": gin.H{"_token": gin.H{"type": "string"}},
				}}}}
			}
			item[strings.ToLower(m)] = op
		}
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": "castboard", "version": "v1.0.0"},
		"paths":   paths,
	}
}

// openAPIPath turns "/episode/:episode/edit" into "/episode/{episode}/edit".
func openAPIPath(p string) (string, []gin.H) {
	var params []gin.H
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			segments[i] = "{" + name + "}"
			params = append(params, gin.H{"name": name, "in": "path", "required": true, "schema": gin.H{"type": "string"}})
		}
	}
	return strings.Join(segments, "/"), params
}
