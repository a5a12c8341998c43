// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinate

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianSwarm/services/coordinator/datatypes"
)

var (
	tracer = otel.Tracer("aleutian.coordinate")
	meter  = otel.Meter("aleutian.coordinate")
)

var (
	metricsOnce sync.Once

	decisionsTotal metric.Int64Counter
	opDuration     metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		decisionsTotal, err = meter.Int64Counter("swarm_coordination_decisions_total",
			metric.WithDescription("Coordination outcomes by operation and action"))
		if err != nil {
			otel.Handle(err)
		}
		opDuration, err = meter.Float64Histogram("swarm_coordination_duration_seconds",
			metric.WithDescription("Coordination operation latency"),
			metric.WithUnit("s"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

// observeDecision records one completed coordination decision.
func observeDecision(ctx context.Context, op string, action datatypes.OrchestrationAction, start time.Time) {
	if decisionsTotal == nil || opDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("action", string(action)),
	)
	decisionsTotal.Add(ctx, 1, attrs)
	opDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
