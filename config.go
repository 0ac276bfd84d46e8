package servicebridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config is a declarative interception file:
//
//	interception:
//	  - type: "calc.Calculator"
//	    interceptors: ["logging"]
//	    methods:
//	      - name: Add
//	        interceptors: ["timing", {name: "audit", lifetime: call}]
//	        parameters: ["a", "b"]
//
// Types are matched by reflect.Type.String(). Interceptors are resolved from
// the container by name, as with UseNamed.
type Config struct {
	Interception []TypeConfig `yaml:"interception" toml:"interception" json:"interception"`

	source string
}

// TypeConfig declares interceptors for one type.
type TypeConfig struct {
	Type         string           `yaml:"type" toml:"type" json:"type"`
	Interceptors []InterceptorRef `yaml:"interceptors" toml:"interceptors" json:"interceptors"`
	Methods      []MethodConfig   `yaml:"methods" toml:"methods" json:"methods"`
}

// MethodConfig declares interceptors and parameter names for one method.
type MethodConfig struct {
	Name         string           `yaml:"name" toml:"name" json:"name"`
	Interceptors []InterceptorRef `yaml:"interceptors" toml:"interceptors" json:"interceptors"`
	Parameters   []string         `yaml:"parameters" toml:"parameters" json:"parameters"`
}

// InterceptorRef names a container-registered interceptor. In files it is
// either a plain name or an object with name and lifetime.
type InterceptorRef struct {
	Name     string
	Lifetime Lifetime
}

type interceptorRefObject struct {
	Name     string `yaml:"name" json:"name"`
	Lifetime string `yaml:"lifetime" json:"lifetime"`
}

func (r *InterceptorRef) fromObject(obj interceptorRefObject) error {
	r.Name = obj.Name
	return r.Lifetime.UnmarshalText([]byte(obj.Lifetime))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *InterceptorRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Name = node.Value
		r.Lifetime = PipelineLifetime
		return nil
	}

	var obj interceptorRefObject
	if err := node.Decode(&obj); err != nil {
		return err
	}
	return r.fromObject(obj)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (r *InterceptorRef) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		r.Name = v
		r.Lifetime = PipelineLifetime
		return nil
	case map[string]any:
		var obj interceptorRefObject
		if name, ok := v["name"].(string); ok {
			obj.Name = name
		}
		if lifetime, ok := v["lifetime"].(string); ok {
			obj.Lifetime = lifetime
		}
		return r.fromObject(obj)
	default:
		return fmt.Errorf("interceptor must be a name or a table, got %T", data)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *InterceptorRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		r.Lifetime = PipelineLifetime
		return nil
	}

	var obj interceptorRefObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	return r.fromObject(obj)
}

// Declaration returns the declaration the reference stands for.
func (r InterceptorRef) Declaration() Declaration {
	return UseNamed(r.Name, WithLifetime(r.Lifetime))
}

// ParseConfig decodes an interception file. format is "yaml", "yml", "toml"
// or "json".
func ParseConfig(data []byte, format string) (*Config, error) {
	cfg := &Config{}

	var err error
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	case "json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads an interception file, picking the format from its extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigFileError{Path: path, Entry: -1, Cause: err}
	}

	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		if fe, ok := err.(*ConfigFileError); ok {
			fe.Path = path
			return nil, fe
		}
		return nil, &ConfigFileError{Path: path, Entry: -1, Cause: err}
	}

	cfg.source = path
	return cfg, nil
}

// Validate checks that every entry names a type, every method a name and
// every interceptor reference a name.
func (c *Config) Validate() error {
	for i, tc := range c.Interception {
		if err := tc.validate(); err != nil {
			return &ConfigFileError{Path: c.source, Entry: i, Cause: err}
		}
	}
	return nil
}

func (tc *TypeConfig) validate() error {
	if strings.TrimSpace(tc.Type) == "" {
		return ErrConfigTypeEmpty
	}
	if err := validateRefs(tc.Interceptors); err != nil {
		return err
	}
	for _, m := range tc.Methods {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%s: %w", tc.Type, ErrConfigMethodEmpty)
		}
		if err := validateRefs(m.Interceptors); err != nil {
			return fmt.Errorf("%s.%s: %w", tc.Type, m.Name, err)
		}
	}
	return nil
}

func validateRefs(refs []InterceptorRef) error {
	for _, ref := range refs {
		if strings.TrimSpace(ref.Name) == "" {
			return ErrConfigNameEmpty
		}
		if !ref.Lifetime.IsValid() {
			return fmt.Errorf("interceptor %q: invalid lifetime %s", ref.Name, ref.Lifetime)
		}
	}
	return nil
}

// Apply adds the declarations of cfg to the registry.
func (r *Registry) Apply(cfg *Config) error {
	if r == nil {
		return ErrRegistryNil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, tc := range cfg.Interception {
		b := r.InterceptNamed(tc.Type)
		b.All(declarations(tc.Interceptors)...)
		for _, m := range tc.Methods {
			b.Method(m.Name, declarations(m.Interceptors)...)
			if len(m.Parameters) > 0 {
				b.Parameters(m.Name, m.Parameters...)
			}
		}
	}
	return nil
}

// LoadFile loads an interception file and applies it.
func (r *Registry) LoadFile(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return r.Apply(cfg)
}

func declarations(refs []InterceptorRef) []Declaration {
	decls := make([]Declaration, len(refs))
	for i, ref := range refs {
		decls[i] = ref.Declaration()
	}
	return decls
}
