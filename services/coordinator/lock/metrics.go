// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.lock")
	meter  = otel.Meter("aleutian.lock")
)

var (
	metricsOnce sync.Once

	acquireTotal  metric.Int64Counter
	conflictTotal metric.Int64Counter
	releaseTotal  metric.Int64Counter
	sweptTotal    metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		acquireTotal, err = meter.Int64Counter("swarm_lock_acquisitions_total",
			metric.WithDescription("Successful lock acquisitions, one per file"))
		if err != nil {
			otel.Handle(err)
		}
		conflictTotal, err = meter.Int64Counter("swarm_lock_conflicts_total",
			metric.WithDescription("Acquire attempts rejected with FILE_CONFLICT"))
		if err != nil {
			otel.Handle(err)
		}
		releaseTotal, err = meter.Int64Counter("swarm_lock_releases_total",
			metric.WithDescription("Lock entries released by their owner"))
		if err != nil {
			otel.Handle(err)
		}
		sweptTotal, err = meter.Int64Counter("swarm_lock_swept_total",
			metric.WithDescription("Expired lock entries removed by sweeps"))
		if err != nil {
			otel.Handle(err)
		}
	})
}
