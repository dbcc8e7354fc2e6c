package transmission

import (
	"errors"
	"fmt"
)

// Common errors returned by the Transmission client.
var (
	// ErrConnectionFailed is returned when connection to Transmission fails.
	ErrConnectionFailed = errors.New("connection to Transmission failed")
)

// RPCError reports a failed RPC call together with the torrent it targeted.
type RPCError struct {
	Method string
	Hash   string
	Err    error
}

func (e *RPCError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("transmission %s %s: %v", e.Method, e.Hash, e.Err)
	}
	return fmt.Sprintf("transmission %s: %v", e.Method, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}
