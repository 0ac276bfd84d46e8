package servicebridge

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how long a container-resolved interceptor instance is
// kept by a pipeline.
type Lifetime int

const (
	// PipelineLifetime resolves the interceptor once, when the pipeline is
	// built, and shares the instance across every call of that method.
	// Shared interceptors must be safe for concurrent use.
	PipelineLifetime Lifetime = iota

	// CallLifetime resolves the interceptor from the container on every
	// intercepted call, so the container's own registration lifetime decides
	// whether instances are shared. Resolution is still validated at build time.
	CallLifetime
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case PipelineLifetime:
		return "Pipeline"
	case CallLifetime:
		return "Call"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is valid.
func (l Lifetime) IsValid() bool {
	return l >= PipelineLifetime && l <= CallLifetime
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Pipeline", "pipeline", "":
		*l = PipelineLifetime
	case "Call", "call":
		*l = CallLifetime
	default:
		return fmt.Errorf("invalid interceptor lifetime: %q", string(text))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
