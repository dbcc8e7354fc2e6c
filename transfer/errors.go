package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned when a pass is already in progress.
	ErrAlreadyRunning = errors.New("transfer already running")
	// ErrSameClient is returned when source and target name the same client.
	ErrSameClient = errors.New("source and target must be different clients")
	// ErrNotRegistered is returned when the target never lists an added torrent.
	ErrNotRegistered = errors.New("torrent not registered on target")
)

// TorrentError is a failure while processing one torrent.
type TorrentError struct {
	Hash string
	Name string
	Op   string
	Err  error
}

func (e *TorrentError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Name, shortHash(e.Hash), e.Err)
}

func (e *TorrentError) Unwrap() error {
	return e.Err
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
