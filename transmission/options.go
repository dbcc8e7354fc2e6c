package transmission

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout            time.Duration
	insecureSkipVerify bool
	httpClient         *http.Client
}

func defaultOptions() *clientOptions {
	return &clientOptions{timeout: defaultTimeout}
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
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.insecureSkipVerify = true
	}
}

// WithHTTPClient replaces the HTTP client used for RPC calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}
