// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kv

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.kv")

var (
	metricsOnce sync.Once

	opsTotal   metric.Int64Counter
	opDuration metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		opsTotal, err = meter.Int64Counter("swarm_kv_operations_total",
			metric.WithDescription("Key-value operations by command and outcome"))
		if err != nil {
			otel.Handle(err)
		}
		opDuration, err = meter.Float64Histogram("swarm_kv_operation_duration_seconds",
			metric.WithDescription("Key-value operation latency"),
			metric.WithUnit("s"))
		if err != nil {
			otel.Handle(err)
		}
	})
}

// observe records one completed operation.
func observe(ctx context.Context, op string, start time.Time, err error) {
	if opsTotal == nil || opDuration == nil {
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
	opsTotal.Add(ctx, 1, attrs)
	opDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
