// Package qbittorrent adapts the qBittorrent Web API to the downloader.Client
// contract.
//
// This package wraps the autobrr/go-qbittorrent library behind the narrow
// API interface so the synchronizer can read completed torrents, export
// their .torrent files and add torrents without touching HTTP details.
//
// # Features
//
//   - Login on construction, version ping for connection tests
//   - Completed torrent listing with tags split into a slice
//   - Tracker and file list retrieval (priority 0 means unwanted)
//   - .torrent export, add from memory or magnet with autoTMM disabled
//   - Pause only; nothing in this package deletes torrents
//
// # Usage
//
//	client, err := qbittorrent.NewClient(ctx, "qb", url, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	torrents, err := client.CompletedTorrents(ctx)
package qbittorrent
