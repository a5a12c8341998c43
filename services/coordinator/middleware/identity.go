// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the coordinator service.
//
// # Identity Flow
//
// Agents identify themselves with plain headers; there is no token exchange.
// The identity middleware copies the headers into the Gin context so
// handlers never touch the raw request:
//
//	Request
//	   │
//	   ▼
//	IdentityMiddleware
//	   │
//	   ├─► Read "X-User-ID" / "X-User-Name"
//	   │
//	   └─► Store coordinate.Identity in context
//	           │
//	           ▼
//	       Handler (retrieves via GetIdentity)
//
// A missing X-User-ID yields a zero identity; operations that require a
// caller reject it downstream with a validation error. The admin sweep
// endpoint is instead guarded by SweepAuthMiddleware and a shared secret.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/coordinate"
)

// Identity headers sent by agent clients.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// identityKey is the context key for storing the caller identity.
// Using a dedicated key prevents collisions with other context values.
const identityKey = "swarm_identity"

// SetIdentity stores the caller identity in the Gin context.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - id: Caller identity. The zero value marks an anonymous request.
func SetIdentity(c *gin.Context, id coordinate.Identity) {
	c.Set(identityKey, id)
}

// GetIdentity retrieves the caller identity from the Gin context.
//
// # Outputs
//
//   - coordinate.Identity: The stored identity, or the zero value when the
//     middleware did not run or the headers were absent.
func GetIdentity(c *gin.Context) coordinate.Identity {
	if v, exists := c.Get(identityKey); exists {
		if id, ok := v.(coordinate.Identity); ok {
			return id
		}
	}
	return coordinate.Identity{}
}

// IdentityMiddleware creates a Gin middleware that extracts the caller
// identity headers.
//
// # Description
//
// Reads X-User-ID and X-User-Name and stores them for downstream handlers.
// The middleware never rejects: whether an anonymous caller is acceptable
// depends on the operation, so that decision stays with the coordinator.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		SetIdentity(c, coordinate.Identity{
			UserID:   c.GetHeader(HeaderUserID),
			UserName: c.GetHeader(HeaderUserName),
		})
		c.Next()
	}
}
