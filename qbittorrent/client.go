package qbittorrent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/metainfo"
)

// Client adapts the qBittorrent Web API to downloader.Client.
type Client struct {
	name   string
	api    API
	logger zerolog.Logger
}

var _ downloader.Client = (*Client)(nil)

// NewClient creates a new qBittorrent client and logs in.
func NewClient(ctx context.Context, name, url, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("qBittorrent URL is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	api := qbittorrent.NewClient(qbittorrent.Config{
		Host:          url,
		Username:      username,
		Password:      password,
		TLSSkipVerify: o.insecureSkipVerify,
		Timeout:       int(o.timeout.Seconds()),
	})

	if err := api.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return NewClientWithAPI(name, api, logger), nil
}

// NewClientWithAPI creates a Client around an already authenticated API.
func NewClientWithAPI(name string, api API, logger zerolog.Logger) *Client {
	return &Client{
		name:   name,
		api:    api,
		logger: logger.With().Str("downloader", name).Logger(),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Kind() downloader.Kind { return downloader.KindQBittorrent }

// Ping checks the connection by asking for the application version.
func (c *Client) Ping(ctx context.Context) error {
	version, err := c.api.GetAppVersionCtx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.logger.Debug().Str("version", version).Msg("qBittorrent reachable")
	return nil
}

// CompletedTorrents returns every torrent that finished downloading.
func (c *Client) CompletedTorrents(ctx context.Context) ([]downloader.Torrent, error) {
	torrents, err := c.api.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Filter: qbittorrent.TorrentFilterCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}

	c.logger.Debug().Msgf("Retrieved %d completed torrents from qBittorrent", len(torrents))

	results := make([]downloader.Torrent, 0, len(torrents))
	for _, t := range torrents {
		results = append(results, convertTorrent(t))
	}
	return results, nil
}

// Lookup finds a single torrent by hash.
func (c *Client) Lookup(ctx context.Context, hash string) (*downloader.Torrent, error) {
	torrents, err := c.api.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Hashes: []string{hash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent: %w", err)
	}

	for _, t := range torrents {
		if downloader.NormalizeHash(t.Hash) == downloader.NormalizeHash(hash) {
			info := convertTorrent(t)
			return &info, nil
		}
	}
	return nil, downloader.ErrTorrentNotFound
}

// Trackers returns the announce URLs of a torrent. qBittorrent also lists
// the DHT, PeX and LSD pseudo trackers, which are dropped.
func (c *Client) Trackers(ctx context.Context, hash string) ([]string, error) {
	trackers, err := c.api.GetTorrentTrackersCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get trackers: %w", err)
	}

	urls := make([]string, 0, len(trackers))
	for _, t := range trackers {
		urls = append(urls, t.Url)
	}
	return metainfo.SanitizeTrackers(urls), nil
}

// Files returns the file list with the wanted flag derived from priority.
func (c *Client) Files(ctx context.Context, hash string) ([]downloader.File, error) {
	files, err := c.api.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent files: %w", err)
	}
	if files == nil {
		return nil, nil
	}

	out := make([]downloader.File, 0, len(*files))
	for _, f := range *files {
		out = append(out, downloader.File{
			Index:  f.Index,
			Path:   f.Name,
			Size:   f.Size,
			Wanted: f.Priority != priorityDoNotDownload,
		})
	}
	return out, nil
}

// Export returns the .torrent bytes of a torrent.
func (c *Client) Export(ctx context.Context, hash string) ([]byte, error) {
	data, err := c.api.ExportTorrentCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to export torrent: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyExport
	}
	return data, nil
}

// Add adds a torrent from .torrent bytes or a magnet link. Automatic torrent
// management is disabled so the category cannot relocate the save path.
func (c *Client) Add(ctx context.Context, req downloader.AddRequest) error {
	options := map[string]string{
		"autoTMM": "false",
		"paused":  strconv.FormatBool(req.Paused),
		"stopped": strconv.FormatBool(req.Paused),
	}
	if req.SavePath != "" {
		options["savepath"] = req.SavePath
	}
	if req.Category != "" {
		options["category"] = req.Category
	}
	if len(req.Tags) > 0 {
		options["tags"] = strings.Join(req.Tags, ",")
	}

	c.logger.Debug().
		Str("hash", req.Hash).
		Str("save_path", req.SavePath).
		Str("category", req.Category).
		Bool("metainfo", req.IsMetaInfo()).
		Msg("Adding torrent to qBittorrent")

	var err error
	if req.IsMetaInfo() {
		err = c.api.AddTorrentFromMemoryCtx(ctx, req.MetaInfo, options)
	} else {
		err = c.api.AddTorrentFromUrlCtx(ctx, req.Magnet, options)
	}
	if err != nil {
		return fmt.Errorf("failed to add torrent: %w", err)
	}
	return nil
}

// AddTrackers appends the announce URLs of missing not already in existing.
func (c *Client) AddTrackers(ctx context.Context, hash string, missing, existing []string) error {
	clean := metainfo.MissingTrackers(missing, existing)
	if len(clean) == 0 {
		return nil
	}
	if err := c.api.AddTrackersCtx(ctx, hash, strings.Join(clean, "\n")); err != nil {
		return fmt.Errorf("failed to add trackers: %w", err)
	}
	return nil
}

// SetUnwantedFiles sets the given file indices to "do not download".
func (c *Client) SetUnwantedFiles(ctx context.Context, hash string, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	ids := make([]string, len(indices))
	for i, idx := range indices {
		ids[i] = strconv.Itoa(idx)
	}
	if err := c.api.SetFilePriorityCtx(ctx, hash, strings.Join(ids, "|"), priorityDoNotDownload); err != nil {
		return fmt.Errorf("failed to set file priority: %w", err)
	}
	return nil
}

// Pause pauses a torrent. It never removes data.
func (c *Client) Pause(ctx context.Context, hash string) error {
	if err := c.api.PauseCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to pause torrent: %w", err)
	}
	return nil
}

func convertTorrent(t qbittorrent.Torrent) downloader.Torrent {
	return downloader.Torrent{
		Hash:     downloader.NormalizeHash(t.Hash),
		Name:     t.Name,
		SavePath: t.SavePath,
		Category: t.Category,
		Tags:     downloader.SplitTags(t.Tags),
		Progress: t.Progress,
		Size:     t.Size,
		State:    string(t.State),

		CompletedOn: completedOn(t.CompletionOn),
	}
}

// completedOn converts qBittorrent's completion_on, which is -1 or 0 for
// torrents that never finished.
func completedOn(unix int64) time.Time {
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
