package qbittorrent

import (
	"context"

	"github.com/autobrr/go-qbittorrent"
)

// API is the subset of the go-qbittorrent client used by Client.
type API interface {
	LoginCtx(ctx context.Context) error
	GetAppVersionCtx(ctx context.Context) (string, error)
	GetTorrentsCtx(ctx context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	GetTorrentTrackersCtx(ctx context.Context, hash string) ([]qbittorrent.TorrentTracker, error)
	GetFilesInformationCtx(ctx context.Context, hash string) (*qbittorrent.TorrentFiles, error)
	ExportTorrentCtx(ctx context.Context, hash string) ([]byte, error)
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
	AddTrackersCtx(ctx context.Context, hash string, urls string) error
	SetFilePriorityCtx(ctx context.Context, hash string, IDs string, priority int) error
	PauseCtx(ctx context.Context, hashes []string) error
}

var _ API = (*qbittorrent.Client)(nil)
