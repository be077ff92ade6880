// Package auth provides API token validation for the read-only HTTP API.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// Validator handles authentication validation
type Validator struct {
	apiTokens map[string]bool
}

// NewValidator loads tokens from tokenFile, one per line. An empty path or
// a missing file leaves the API open.
func NewValidator(tokenFile string) (*Validator, error) {
	validator := &Validator{
		apiTokens: make(map[string]bool),
	}

	if err := validator.loadAPITokens(tokenFile); err != nil {
		return nil, fmt.Errorf("failed to load API tokens: %w", err)
	}

	if !validator.Enabled() {
		logrus.Warn("No API tokens configured, the HTTP API is unauthenticated")
	}

	return validator, nil
}

// loadAPITokens loads API tokens for authentication
func (v *Validator) loadAPITokens(tokenFile string) error {
	if tokenFile == "" {
		return nil
	}

	content, err := os.ReadFile(tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logrus.WithField("token_file", tokenFile).Warn("API token file not found")
			return nil
		}
		return fmt.Errorf("failed to read API tokens: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		token := strings.TrimSpace(line)
		if token != "" && !strings.HasPrefix(token, "#") {
			v.apiTokens[token] = true
		}
	}

	return nil
}

// Enabled reports whether any token is configured
func (v *Validator) Enabled() bool {
	return len(v.apiTokens) > 0
}

// Middleware returns Gin middleware for authentication
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() || v.validateAPIToken(c) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{
			Error:   "authentication required",
			Message: "provide a valid API token",
			Code:    http.StatusUnauthorized,
		})
	}
}

// validateAPIToken validates API token from Authorization or X-API-Token headers
func (v *Validator) validateAPIToken(c *gin.Context) bool {
	token := ""
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	} else {
		token = c.GetHeader("X-API-Token")
	}
	if token == "" {
		return false
	}

	for known := range v.apiTokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return true
		}
	}
	return false
}
