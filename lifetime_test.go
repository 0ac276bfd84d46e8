package servicebridge_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

func TestLifetime(t *testing.T) {
	t.Run("constants", func(t *testing.T) {
		assert.Equal(t, servicebridge.Lifetime(0), servicebridge.PipelineLifetime)
		assert.Equal(t, servicebridge.Lifetime(1), servicebridge.CallLifetime)
	})

	t.Run("String", func(t *testing.T) {
		tests := []struct {
			lifetime servicebridge.Lifetime
			expected string
		}{
			{servicebridge.PipelineLifetime, "Pipeline"},
			{servicebridge.CallLifetime, "Call"},
			{servicebridge.Lifetime(999), "Unknown(999)"},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, tt.lifetime.String())
		}
	})

	t.Run("IsValid", func(t *testing.T) {
		tests := []struct {
			lifetime servicebridge.Lifetime
			valid    bool
		}{
			{servicebridge.PipelineLifetime, true},
			{servicebridge.CallLifetime, true},
			{servicebridge.Lifetime(-1), false},
			{servicebridge.Lifetime(2), false},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.valid, tt.lifetime.IsValid(), "lifetime %d", tt.lifetime)
		}
	})

	t.Run("UnmarshalText", func(t *testing.T) {
		tests := []struct {
			input    string
			expected servicebridge.Lifetime
			wantErr  bool
		}{
			{"", servicebridge.PipelineLifetime, false},
			{"pipeline", servicebridge.PipelineLifetime, false},
			{"Pipeline", servicebridge.PipelineLifetime, false},
			{"call", servicebridge.CallLifetime, false},
			{"Call", servicebridge.CallLifetime, false},
			{"transient", 0, true},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				var l servicebridge.Lifetime
				err := l.UnmarshalText([]byte(tt.input))
				if tt.wantErr {
					assert.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.expected, l)
			})
		}
	})

	t.Run("JSON", func(t *testing.T) {
		type config struct {
			Lifetime servicebridge.Lifetime `json:"lifetime"`
		}

		data, err := json.Marshal(config{Lifetime: servicebridge.CallLifetime})
		require.NoError(t, err)
		assert.JSONEq(t, `{"lifetime":"Call"}`, string(data))

		var decoded config
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, servicebridge.CallLifetime, decoded.Lifetime)

		assert.Error(t, json.Unmarshal([]byte(`{"lifetime":42}`), &decoded))
	})
}
