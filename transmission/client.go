package transmission

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hekmon/transmissionrpc/v3"
	"github.com/rs/zerolog"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/metainfo"
)

// Client adapts the Transmission RPC interface to downloader.Client.
type Client struct {
	name   string
	api    *transmissionrpc.Client
	logger zerolog.Logger
}

var _ downloader.Client = (*Client)(nil)

// NewClient creates a new Transmission client. rawURL is the full RPC
// endpoint, usually http://host:9091/transmission/rpc.
func NewClient(name, rawURL, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("transmission RPC URL is required")
	}

	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transmission RPC URL: %w", err)
	}
	if username != "" || password != "" {
		endpoint.User = url.UserPassword(username, password)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if o.insecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Timeout: o.timeout, Transport: transport}
	}

	api, err := transmissionrpc.New(endpoint, &transmissionrpc.Config{
		CustomClient: httpClient,
		UserAgent:    "seedshift",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transmission client: %w", err)
	}

	return &Client{
		name:   name,
		api:    api,
		logger: logger.With().Str("downloader", name).Logger(),
	}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Kind() downloader.Kind { return downloader.KindTransmission }

// Ping checks the connection with session-get.
func (c *Client) Ping(ctx context.Context) error {
	session, err := c.api.SessionArgumentsGet(ctx, []string{"version", "rpc-version"})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, &RPCError{Method: "session-get", Err: err})
	}
	c.logger.Debug().
		Str("version", deref(session.Version)).
		Int64("rpc_version", deref(session.RPCVersion)).
		Msg("Transmission reachable")
	return nil
}

// CompletedTorrents returns every torrent that finished downloading.
func (c *Client) CompletedTorrents(ctx context.Context) ([]downloader.Torrent, error) {
	all, err := c.api.TorrentGetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", &RPCError{Method: "torrent-get", Err: err})
	}

	var results []downloader.Torrent
	for _, t := range all {
		if t.PercentDone == nil || *t.PercentDone < 1 {
			continue
		}
		results = append(results, convertTorrent(t))
	}

	c.logger.Debug().Msgf("Retrieved %d completed torrents from Transmission (%d total)", len(results), len(all))
	return results, nil
}

func (c *Client) find(ctx context.Context, hash string) (transmissionrpc.Torrent, error) {
	found, err := c.api.TorrentGetAllForHashes(ctx, []string{hash})
	if err != nil {
		return transmissionrpc.Torrent{}, fmt.Errorf("failed to get torrent: %w", &RPCError{Method: "torrent-get", Hash: hash, Err: err})
	}
	want := downloader.NormalizeHash(hash)
	for _, t := range found {
		if downloader.NormalizeHash(deref(t.HashString)) == want {
			return t, nil
		}
	}
	return transmissionrpc.Torrent{}, downloader.ErrTorrentNotFound
}

// id resolves the numeric id torrent-set needs.
func (c *Client) id(ctx context.Context, hash string) (int64, error) {
	t, err := c.find(ctx, hash)
	if err != nil {
		return 0, err
	}
	if t.ID == nil {
		return 0, &RPCError{Method: "torrent-get", Hash: hash, Err: errors.New("response carries no torrent id")}
	}
	return *t.ID, nil
}

// Lookup finds a single torrent by hash.
func (c *Client) Lookup(ctx context.Context, hash string) (*downloader.Torrent, error) {
	t, err := c.find(ctx, hash)
	if err != nil {
		return nil, err
	}
	info := convertTorrent(t)
	return &info, nil
}

// Trackers returns the announce URLs of a torrent.
func (c *Client) Trackers(ctx context.Context, hash string) ([]string, error) {
	t, err := c.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	return t.Trackers, nil
}

// Files returns the file list with the wanted flag from fileStats.
func (c *Client) Files(ctx context.Context, hash string) ([]downloader.File, error) {
	t, err := c.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	return t.Files, nil
}

// Export is not available over RPC; the .torrent file only exists on the
// daemon's disk.
func (c *Client) Export(ctx context.Context, hash string) ([]byte, error) {
	return nil, downloader.ErrExportUnsupported
}

// Add adds a torrent from .torrent bytes or a magnet link. Tags become labels.
func (c *Client) Add(ctx context.Context, req downloader.AddRequest) error {
	paused := req.Paused
	payload := transmissionrpc.TorrentAddPayload{
		Paused: &paused,
		Labels: req.Tags,
	}
	if req.SavePath != "" {
		dir := req.SavePath
		payload.DownloadDir = &dir
	}
	if len(payload.Labels) == 0 && req.Category != "" {
		payload.Labels = []string{req.Category}
	}
	if req.IsMetaInfo() {
		encoded := base64.StdEncoding.EncodeToString(req.MetaInfo)
		payload.MetaInfo = &encoded
	} else {
		magnet := req.Magnet
		payload.Filename = &magnet
	}

	c.logger.Debug().
		Str("hash", req.Hash).
		Str("save_path", req.SavePath).
		Strs("labels", payload.Labels).
		Bool("metainfo", req.IsMetaInfo()).
		Msg("Adding torrent to Transmission")

	added, err := c.api.TorrentAdd(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to add torrent: %w", &RPCError{Method: "torrent-add", Hash: req.Hash, Err: err})
	}
	c.logger.Debug().Str("hash", deref(added.HashString)).Msg("Transmission accepted torrent")
	return nil
}

// AddTrackers first replaces the tracker list with existing+missing, one
// tier per URL (trackerList, Transmission 4.0+). When that call fails it
// falls back to appending the missing URLs with trackerAdd (3.x).
func (c *Client) AddTrackers(ctx context.Context, hash string, missing, existing []string) error {
	clean := metainfo.MissingTrackers(missing, existing)
	if len(clean) == 0 {
		return nil
	}

	id, err := c.id(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to add trackers: %w", err)
	}

	combined := metainfo.SanitizeTrackers(append(append([]string{}, existing...), clean...))
	err = c.api.TorrentSet(ctx, transmissionrpc.TorrentSetPayload{
		IDs:         []int64{id},
		TrackerList: tiers(combined),
	})
	if err == nil {
		return nil
	}

	c.logger.Debug().Err(err).Str("hash", hash).Msg("trackerList rejected, falling back to trackerAdd")

	err = c.api.TorrentSet(ctx, transmissionrpc.TorrentSetPayload{
		IDs:        []int64{id},
		TrackerAdd: clean,
	})
	if err != nil {
		return fmt.Errorf("failed to add trackers: %w", &RPCError{Method: "torrent-set", Hash: hash, Err: err})
	}
	return nil
}

// tiers puts every URL in its own tier. trackerList lines are joined with
// a newline and a blank line separates tiers.
func tiers(urls []string) []string {
	out := make([]string, 0, 2*len(urls))
	for i, u := range urls {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, u)
	}
	return out
}

// SetUnwantedFiles marks the given file indices as unwanted.
func (c *Client) SetUnwantedFiles(ctx context.Context, hash string, indices []int) error {
	if len(indices) == 0 {
		return nil
	}

	id, err := c.id(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to set unwanted files: %w", err)
	}

	unwanted := make([]int64, len(indices))
	for i, idx := range indices {
		unwanted[i] = int64(idx)
	}
	err = c.api.TorrentSet(ctx, transmissionrpc.TorrentSetPayload{
		IDs:           []int64{id},
		FilesUnwanted: unwanted,
	})
	if err != nil {
		return fmt.Errorf("failed to set unwanted files: %w", &RPCError{Method: "torrent-set", Hash: hash, Err: err})
	}
	return nil
}

// Pause stops a torrent. It never removes data.
func (c *Client) Pause(ctx context.Context, hash string) error {
	if err := c.api.TorrentStopHashes(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to stop torrent: %w", &RPCError{Method: "torrent-stop", Hash: hash, Err: err})
	}
	return nil
}
