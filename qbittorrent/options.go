package qbittorrent

import "time"

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout            time.Duration
	insecureSkipVerify bool
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithInsecureSkipVerify disables certificate verification.
// Use with caution and only for development/testing.
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.insecureSkipVerify = true
	}
}
