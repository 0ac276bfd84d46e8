package interceptors

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Call outcomes used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultPanic = "panic"
)

// Metrics records Prometheus metrics for intercepted calls.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewMetrics registers the call metrics with reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intercepted_calls_total",
			Help:      "Total intercepted calls by outcome.",
		}, []string{"service", "method", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intercepted_call_duration_seconds",
			Help:      "Intercepted call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "intercepted_calls_in_flight",
			Help:      "Intercepted calls currently running.",
		}, []string{"service", "method"}),
	}
}

func (m *Metrics) Name() string {
	return "metrics"
}

func (m *Metrics) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	method := inv.Method()
	service := method.Service.String()

	inFlight := m.InFlight.WithLabelValues(service, method.Name)
	inFlight.Inc()
	defer inFlight.Dec()

	start := time.Now()
	ret := next(inv)
	m.Duration.WithLabelValues(service, method.Name).Observe(time.Since(start).Seconds())
	m.Calls.WithLabelValues(service, method.Name, outcome(ret.Err())).Inc()

	return ret
}

func outcome(err error) string {
	if err == nil {
		return ResultOK
	}
	var panicErr *servicebridge.PanicError
	if errors.As(err, &panicErr) {
		return ResultPanic
	}
	return ResultError
}
