// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/coordinate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// sweepRouter wires the auth middleware in front of a trivial handler.
func sweepRouter(secret string) *gin.Engine {
	r := gin.New()
	r.POST("/admin/sweep", SweepAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

// =============================================================================
// extractBearerToken Tests
// =============================================================================

func TestExtractBearerToken_ValidToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)
	c.Request.Header.Set("Authorization", "Bearer abc123")

	assert.Equal(t, "abc123", extractBearerToken(c))
}

func TestExtractBearerToken_MissingHeader(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)

	assert.Empty(t, extractBearerToken(c))
}

func TestExtractBearerToken_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "abc123"},
		{"basic auth", "Basic abc123"},
		{"only bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("POST", "/", nil)
			c.Request.Header.Set("Authorization", tt.header)

			assert.Empty(t, extractBearerToken(c))
		})
	}
}

func TestExtractBearerToken_CaseInsensitive(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)
	c.Request.Header.Set("Authorization", "bearer abc123")

	assert.Equal(t, "abc123", extractBearerToken(c))
}

// =============================================================================
// SweepAuthMiddleware Tests
// =============================================================================

func TestSweepAuth_MatchingSecret(t *testing.T) {
	r := sweepRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/sweep", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSweepAuth_WrongSecret(t *testing.T) {
	r := sweepRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/sweep", nil)
	req.Header.Set("Authorization", "Bearer nope")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestSweepAuth_MissingHeader(t *testing.T) {
	r := sweepRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/sweep", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSweepAuth_EmptySecretDisablesCheck(t *testing.T) {
	r := sweepRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin/sweep", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// Identity Tests
// =============================================================================

func TestIdentityMiddleware_ExtractsHeaders(t *testing.T) {
	var got coordinate.Identity
	r := gin.New()
	r.POST("/", IdentityMiddleware(), func(c *gin.Context) {
		got = GetIdentity(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set(HeaderUserID, "agent-7")
	req.Header.Set(HeaderUserName, "Refactor Bot")
	r.ServeHTTP(w, req)

	assert.Equal(t, coordinate.Identity{UserID: "agent-7", UserName: "Refactor Bot"}, got)
}

func TestIdentityMiddleware_AnonymousPassesThrough(t *testing.T) {
	var got coordinate.Identity
	r := gin.New()
	r.POST("/", IdentityMiddleware(), func(c *gin.Context) {
		got = GetIdentity(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, coordinate.Identity{}, got)
}

func TestGetIdentity_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)

	assert.Equal(t, coordinate.Identity{}, GetIdentity(c))
}
