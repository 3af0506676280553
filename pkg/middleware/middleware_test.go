package middleware

import (
	"bytes"
	"dmchat/pkg/logging"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubTokens map[string]string

func (s stubTokens) ValidateToken(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func newEngine(h ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", append(h, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newEngine(AuthMiddleware(stubTokens{"good": "alice"}))
	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusOK, body: "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				r2.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, r2)

			req.Equal(tt.status, w.Code)
			if tt.body != "" {
				req.Equal(tt.body, w.Body.String())
			}
		})
	}
}

func TestRequestLogger_Injects_Logger(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TracerMiddleware("test"), RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("handler ran")
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	req.Equal(http.StatusNoContent, w.Code)
	req.NotEmpty(w.Header().Get("X-Request-ID"))
	req.Contains(buf.String(), "handler ran")
	req.Contains(buf.String(), "http - request - completed")
	req.Contains(buf.String(), `"path":"/ping"`)
}
