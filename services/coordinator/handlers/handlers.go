// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the coordinator service.
//
// Handlers bind and validate the request, delegate to the coordinator, and
// map errors onto the transport: validation failures are 400, remote quota
// exhaustion is 429 with Retry-After, everything else is 500. Conflict and
// staleness outcomes travel inside 200 responses as orchestration, never as
// HTTP errors.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSwarm/pkg/logging"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/activity"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/coordinate"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/lock"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/middleware"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/observability"
	"github.com/AleutianAI/AleutianSwarm/services/coordinator/remote"
)

// Pinger reports storage connectivity for the health endpoint.
// kv.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the HTTP handlers for the coordination API.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	coord  *coordinate.Coordinator
	ring   *activity.Ring
	pinger Pinger
	log    *logging.Logger
}

// New creates handlers over the coordinator.
//
// Description:
//
//	Wires the coordinator, the activity ring for the observer feed, and a
//	storage pinger for the health endpoint. A nil log falls back to the
//	process default.
//
// Inputs:
//
//	coord - The coordinator. Must not be nil.
//	ring - Activity ring backing GET /activity. Must not be nil.
//	pinger - Storage connectivity probe for /healthz. Must not be nil.
//	log - Structured logger. May be nil.
func New(coord *coordinate.Coordinator, ring *activity.Ring, pinger Pinger, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{
		coord:  coord,
		ring:   ring,
		pinger: pinger,
		log:    log,
	}
}

// HandleCheckStatus handles POST /v1/coordination/check-status.
//
// Description:
//
//	Read-only coordination probe: compares the agent's head against the
//	remote, reports direct locks on the requested files, and derives
//	neighbor conflicts from the cached dependency graph.
//
// Response:
//
//	200 OK: CheckStatusResponse (including STALE and CONFLICT outcomes)
//	400 Bad Request: Validation error
//	429 Too Many Requests: Remote API quota exhausted
//	500 Internal Server Error: Storage or remote failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCheckStatus(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleCheckStatus")

	var req datatypes.CheckStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.coord.CheckStatus(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePostStatus handles POST /v1/coordination/status.
//
// Description:
//
//	Declares what the calling agent is doing with a set of files. WRITING
//	and READING acquire locks, OPEN releases them, any other status is
//	recorded as an informational event. Caller identity arrives in the
//	X-User-ID and X-User-Name headers.
//
// Response:
//
//	200 OK: PostStatusResponse (success or a refusal with orchestration)
//	400 Bad Request: Validation error, including a missing X-User-ID
//	429 Too Many Requests: Remote API quota exhausted
//	500 Internal Server Error: Storage or remote failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandlePostStatus(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandlePostStatus")

	var req datatypes.PostStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.coord.PostStatus(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetGraph handles GET /v1/coordination/graph.
//
// Query Parameters:
//
//	repo_url: Repository URL or owner/name (required)
//	branch: Branch name (required)
//	regenerate: "true" forces a rebuild regardless of freshness
//
// Response:
//
//	200 OK: DependencyGraph with current locks overlaid
//	400 Bad Request: Missing parameters
//	429 Too Many Requests: Quota exhausted and no cached graph to serve
//	500 Internal Server Error: Storage or remote failure
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleGetGraph")

	repoURL := c.Query("repo_url")
	branch := c.Query("branch")
	if repoURL == "" || branch == "" {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "repo_url and branch are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	force := c.Query("regenerate") == "true"

	g, err := h.coord.Graph(c.Request.Context(), repoURL, branch, force)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// HandleLocks handles GET /v1/coordination/locks, the companion poll read
// of live lock state.
//
// Query Parameters:
//
//	repo_url: Repository URL or owner/name (required)
//	branch: Branch name (required)
//
// Response:
//
//	200 OK: LocksResponse
//	400 Bad Request: Missing parameters
//	500 Internal Server Error: Storage failure
func (h *Handlers) HandleLocks(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleLocks")

	repoURL := c.Query("repo_url")
	branch := c.Query("branch")
	if repoURL == "" || branch == "" {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "repo_url and branch are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	locks, err := h.coord.Locks(c.Request.Context(), repoURL, branch)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.LocksResponse{Locks: locks})
}

// HandleReleaseAll handles POST /v1/coordination/release-all.
//
// Description:
//
//	Emergency reset: drops every lock for one (repo, branch) regardless of
//	owner. Intended for operators recovering from a stuck fleet.
//
// Response:
//
//	200 OK: ReleaseAllResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Storage failure
func (h *Handlers) HandleReleaseAll(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleReleaseAll")

	var req datatypes.ReleaseAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	released, err := h.coord.ReleaseAll(c.Request.Context(), req.RepoURL, req.Branch)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.ReleaseAllResponse{Success: true, Released: released})
}

// HandleActivity handles GET /v1/coordination/activity.
//
// Query Parameters:
//
//	repo_url: Filter by repository (optional)
//	branch: Filter by branch (optional)
//	limit: Maximum events to return, newest first (optional, default 50)
//
// Response:
//
//	200 OK: ActivityResponse
//	400 Bad Request: Malformed repo_url or limit
func (h *Handlers) HandleActivity(c *gin.Context) {
	repoFilter := ""
	if raw := c.Query("repo_url"); raw != "" {
		repo, err := remote.CanonicalRepo(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_REQUEST",
			})
			return
		}
		repoFilter = repo.String()
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = n
	}

	events := h.ring.Recent(repoFilter, c.Query("branch"), limit)
	if events == nil {
		events = []datatypes.ActivityEvent{}
	}
	c.JSON(http.StatusOK, datatypes.ActivityResponse{Events: events})
}

// HandleCleanup handles POST /v1/admin/cleanup-stale-locks.
//
// Description:
//
//	Sweeps expired lock entries across every repository and branch. The
//	route is guarded by middleware.SweepAuthMiddleware; external schedulers
//	call this when the in-process sweeper is disabled.
//
// Response:
//
//	200 OK: CleanupResponse
//	401 Unauthorized: Missing or wrong sweep secret (from middleware)
//	500 Internal Server Error: Storage failure
func (h *Handlers) HandleCleanup(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleCleanup")

	cleaned, err := h.coord.Sweep(c.Request.Context())
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSweep("manual", cleaned, err)
	}
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	logger.Info("stale lock cleanup completed", "cleaned", cleaned)
	c.JSON(http.StatusOK, datatypes.CleanupResponse{
		Success:   true,
		Cleaned:   cleaned,
		Timestamp: time.Now().UnixMilli(),
	})
}

// HandleHealthz handles GET /healthz: liveness plus a storage ping.
func (h *Handlers) HandleHealthz(c *gin.Context) {
	if err := h.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps coordinator errors onto HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, logger *logging.Logger, err error) {
	var qe *remote.QuotaError
	switch {
	case errors.Is(err, coordinate.ErrValidation), errors.Is(err, lock.ErrInvalidRequest):
		logger.Warn("rejected request", "error", err)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	case errors.As(err, &qe):
		logger.Warn("remote quota exhausted", "reset_at", qe.ResetAt)
		if wait := time.Until(qe.ResetAt); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		c.JSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
			Error: err.Error(),
			Code:  "RATE_LIMITED",
		})
	default:
		logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: err.Error(),
			Code:  "INTERNAL",
		})
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
