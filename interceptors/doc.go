// Package interceptors provides ready-made interceptors for common
// cross-cutting concerns.
//
// Built-in interceptors:
//   - Logging: logs every call with its duration through a logr.Logger
//   - Timing: reports call durations to a callback
//   - Retry: re-runs failed calls with a backoff policy
//   - Metrics: Prometheus call counters and duration histograms
//   - Tracing: one OpenTelemetry span per call
//   - RateLimit: token-bucket limits per method
//   - Cache: memoizes results in memory or in Redis
//   - Recover: turns panics of the target into errors
//
// They are declared like any other interceptor:
//
//	metrics := interceptors.NewMetrics(prometheus.DefaultRegisterer, "shop")
//	servicebridge.For[OrderService](registry).
//		All(servicebridge.Use(interceptors.NewLogging(logger)), servicebridge.Use(metrics)).
//		Method("Place", servicebridge.Use(interceptors.NewRetry()))
//
// All of them are safe for concurrent use and can be shared by every
// pipeline of a container.
package interceptors
