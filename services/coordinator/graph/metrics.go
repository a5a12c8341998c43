// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.graph")
	meter  = otel.Meter("aleutian.graph")
)

var (
	metricsOnce sync.Once

	buildsTotal   metric.Int64Counter
	buildDuration metric.Float64Histogram
	servedTotal   metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		buildsTotal, err = meter.Int64Counter("swarm_graph_builds_total",
			metric.WithDescription("Graph builds by mode and outcome"))
		if err != nil {
			otel.Handle(err)
		}
		buildDuration, err = meter.Float64Histogram("swarm_graph_build_duration_seconds",
			metric.WithDescription("Graph build latency"),
			metric.WithUnit("s"))
		if err != nil {
			otel.Handle(err)
		}
		servedTotal, err = meter.Int64Counter("swarm_graph_served_total",
			metric.WithDescription("Graph reads by serving source"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

// observeBuild records one completed build attempt.
func observeBuild(ctx context.Context, mode buildMode, start time.Time, err error) {
	if buildsTotal == nil || buildDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	)
	buildsTotal.Add(ctx, 1, attrs)
	buildDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// observeServe records where a successful graph read came from: a fresh
// build, the stored blob, or the stored blob inside a rate-limit window.
func observeServe(ctx context.Context, source string) {
	if servedTotal == nil {
		return
	}
	servedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
