package servicebridge

import (
	"github.com/go-logr/logr"
)

// Option configures an Engine.
type Option interface {
	applyOption(*Options)
}

// Options holds the configuration of an Engine.
type Options struct {
	// Registry supplies interceptor declarations and proxy factories.
	// A new empty registry is used when nil.
	Registry *Registry

	// Logger receives pipeline build and interception decisions.
	// Defaults to logr.Discard().
	Logger logr.Logger

	// Factory turns declarations into interceptors. Defaults to DefaultFactory.
	Factory InterceptorFactory

	// EagerPipelines builds the pipelines of a proxy right after it is
	// created, so configuration errors surface when the service is resolved
	// rather than on its first call.
	EagerPipelines bool
}

// NewOptions returns the defaults with opts applied.
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyOption(options)
		}
	}
	options.setDefaults()
	return options
}

func (o *Options) setDefaults() {
	if o.Registry == nil {
		o.Registry = NewRegistry()
	}
	if o.Logger.GetSink() == nil {
		o.Logger = logr.Discard()
	}
	if o.Factory == nil {
		o.Factory = DefaultFactory
	}
}

type optionFunc func(*Options)

func (f optionFunc) applyOption(o *Options) {
	f(o)
}

// WithRegistry sets the declaration registry. Several engines may share one
// registry; each keeps its own pipeline cache.
func WithRegistry(r *Registry) Option {
	return optionFunc(func(o *Options) {
		o.Registry = r
	})
}

// WithLogger sets the engine logger.
func WithLogger(logger logr.Logger) Option {
	return optionFunc(func(o *Options) {
		o.Logger = logger
	})
}

// WithInterceptorFactory replaces the factory that creates interceptors
// from declarations.
func WithInterceptorFactory(f InterceptorFactory) Option {
	return optionFunc(func(o *Options) {
		o.Factory = f
	})
}

// WithEagerPipelines builds pipelines when proxies are created.
func WithEagerPipelines() Option {
	return optionFunc(func(o *Options) {
		o.EagerPipelines = true
	})
}
