package downloader

import "errors"

// Common errors returned by Client implementations.
var (
	// ErrTorrentNotFound is returned when a hash is not present on a client.
	ErrTorrentNotFound = errors.New("torrent not found")

	// ErrExportUnsupported is returned when a client cannot export .torrent files.
	ErrExportUnsupported = errors.New("torrent export not supported")

	// ErrUnknownKind is returned for a client kind with no implementation.
	ErrUnknownKind = errors.New("unknown downloader kind")

	// ErrUnknownClient is returned when a named client is not configured.
	ErrUnknownClient = errors.New("unknown downloader")
)
