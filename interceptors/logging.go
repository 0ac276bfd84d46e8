package interceptors

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	json "github.com/goccy/go-json"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Logging logs every call. Successful calls are logged at verbosity Level,
// failed calls with logger.Error.
type Logging struct {
	Logger logr.Logger
	Level  int

	// Arguments adds the argument values to the log line.
	Arguments bool
}

// NewLogging creates a Logging interceptor logging successful calls at V(1).
func NewLogging(logger logr.Logger) *Logging {
	return &Logging{Logger: logger, Level: 1}
}

func (l *Logging) Name() string {
	return "logging"
}

func (l *Logging) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	method := inv.Method()
	kv := []any{"service", method.Service.String(), "method", method.Name, "invocation", inv.ID()}
	if l.Arguments {
		kv = append(kv, "arguments", encodeArguments(inv.Arguments().Values()))
	}

	start := time.Now()
	ret := next(inv)
	kv = append(kv, "duration", time.Since(start))

	if err := ret.Err(); err != nil {
		l.Logger.Error(err, "call failed", kv...)
		return ret
	}

	l.Logger.V(l.Level).Info("call completed", kv...)
	return ret
}

// encodeArguments renders argument values as JSON so that every logr sink
// prints them the same way. Values that cannot be encoded fall back to %v.
func encodeArguments(values []any) string {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Sprintf("%v", values)
	}
	return string(data)
}
