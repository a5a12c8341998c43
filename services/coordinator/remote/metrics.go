// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remote

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.remote")
	meter  = otel.Meter("aleutian.remote")
)

var (
	metricsOnce sync.Once

	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	quotaTotal      metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		requestsTotal, err = meter.Int64Counter("swarm_remote_requests_total",
			metric.WithDescription("Remote API requests by operation and outcome"))
		if err != nil {
			otel.Handle(err)
		}
		requestDuration, err = meter.Float64Histogram("swarm_remote_request_duration_seconds",
			metric.WithDescription("Remote API request latency"),
			metric.WithUnit("s"))
		if err != nil {
			otel.Handle(err)
		}
		quotaTotal, err = meter.Int64Counter("swarm_remote_quota_rejections_total",
			metric.WithDescription("Requests rejected by the remote rate limit"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

// observe records one completed request attempt.
func observe(ctx context.Context, op string, start time.Time, err error) {
	if requestsTotal == nil || requestDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	requestsTotal.Add(ctx, 1, attrs)
	requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
