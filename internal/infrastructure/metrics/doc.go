// Package metrics exports the bus's Prometheus collectors.
//
// Collectors are registered on an explicit registry rather than the global
// default one, so several sessions (and tests) can coexist in one process.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	buf := command.NewBuffer(command.Options{Metrics: m, ...})
//	_ = metrics.Serve(ctx, ":9108", reg, nil, logger)
package metrics
