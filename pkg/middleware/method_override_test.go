package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMethodOverride(t *testing.T) {
	g := gin.New()
	g.DELETE("/thing", func(c *gin.Context) {
		c.String(http.StatusOK, "deleted:"+c.PostForm("_token"))
	})
	g.POST("/thing", func(c *gin.Context) { c.String(http.StatusOK, "posted") })
	h := MethodOverride(g)

	form := url.Values{"_method": {"DELETE"}, "_token": {"abc"}}
	req := httptest.NewRequest(http.MethodPost, "/thing", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "deleted:abc", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/thing", nil)
	req.Header.Set("X-HTTP-Method-Override", "delete")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "deleted:", w.Body.String())

	// unknown override values are ignored
	form = url.Values{"_method": {"TRACE"}}
	req = httptest.NewRequest(http.MethodPost, "/thing", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, "posted", w.Body.String())
}
