package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	prefix string
	ttl    time.Duration
}

func newOptions(opts []Option) options {
	o := options{prefix: "biasaudit"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPrefix sets the key namespace used by the redis store.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL expires reports in the redis store. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}
