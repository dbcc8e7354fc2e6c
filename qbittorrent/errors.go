package qbittorrent

import "errors"

// priorityDoNotDownload is the file priority qBittorrent uses for skipped files.
const priorityDoNotDownload = 0

// Common errors returned by the qBittorrent client.
var (
	// ErrConnectionFailed is returned when connection to qBittorrent fails.
	ErrConnectionFailed = errors.New("connection to qBittorrent failed")

	// ErrEmptyExport is returned when qBittorrent exports no data.
	ErrEmptyExport = errors.New("qBittorrent returned an empty torrent export")
)
