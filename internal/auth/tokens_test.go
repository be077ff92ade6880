package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(v *Validator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(v.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestLoadAPITokens(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "api-tokens")
	require.NoError(t, os.WriteFile(tokenFile, []byte("token-a\n\n# disabled\n  token-b  \n"), 0o600))

	tests := []struct {
		name           string
		tokensFile     string
		expectedTokens map[string]bool
	}{
		{
			name:           "no token file configured",
			tokensFile:     "",
			expectedTokens: map[string]bool{},
		},
		{
			name:           "token file missing",
			tokensFile:     filepath.Join(dir, "absent"),
			expectedTokens: map[string]bool{},
		},
		{
			name:           "token file",
			tokensFile:     tokenFile,
			expectedTokens: map[string]bool{"token-a": true, "token-b": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewValidator(tt.tokensFile)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTokens, validator.apiTokens)
		})
	}
}

func TestMiddleware_Open(t *testing.T) {
	validator, err := NewValidator("")
	require.NoError(t, err)
	assert.False(t, validator.Enabled())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	newRouter(validator).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_Tokens(t *testing.T) {
	validator := &Validator{apiTokens: map[string]bool{"secret": true}}
	router := newRouter(validator)

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{name: "bearer token", header: "Authorization", value: "Bearer secret", expected: http.StatusOK},
		{name: "api token header", header: "X-API-Token", value: "secret", expected: http.StatusOK},
		{name: "wrong token", header: "X-API-Token", value: "guess", expected: http.StatusUnauthorized},
		{name: "basic auth", header: "Authorization", value: "Basic c2VjcmV0", expected: http.StatusUnauthorized},
		{name: "no token", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
			if tt.expected == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "authentication required")
			}
		})
	}
}
