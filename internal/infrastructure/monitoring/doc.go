/*
Package monitoring provides metrics collection for the tab session engine.

# Overview

Collectors are Prometheus based and registered on a registry owned by the
Metrics value, so several engines (and tests) can coexist in one process.
Every method is nil-safe: components accept a nil *Metrics when metrics are
not wanted.

# Metrics

- Snapshot requests, archive writes by result, superseded writes
- Archive write duration, size and tab count
- Screenshots collected as orphans, failed screenshot operations
- Restored tabs, skipped records, rejected re-entrant restorations
- Migrated legacy tabs by result
- Debug HTTP requests

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
