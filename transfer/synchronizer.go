// Package transfer moves completed torrents from a source client to a target
// client and keeps their trackers and file selections in step.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/filter"
	"github.com/s0up4200/seedshift/history"
	"github.com/s0up4200/seedshift/metainfo"
	"github.com/s0up4200/seedshift/notifier"
	"github.com/s0up4200/seedshift/pathmap"
)

const (
	defaultSettleTimeout = 10 * time.Second
	defaultPollInterval  = time.Second
)

// Clients resolves configured clients by name.
type Clients interface {
	Get(ctx context.Context, name string) (downloader.Client, error)
}

// History is the dedup store consulted before a torrent is processed.
type History interface {
	Has(ctx context.Context, hash string) (bool, error)
	Record(ctx context.Context, r history.Record) error
}

// Options configures a Synchronizer.
type Options struct {
	Source string
	Target string

	// PauseSource pauses the source torrent after a move or merge.
	PauseSource bool
	// AddPaused adds moved torrents to the target without starting them.
	AddPaused bool
	DryRun    bool
	// Notify sends a summary when a pass changed something or failed.
	Notify bool

	// SettleTimeout bounds the wait for the target to list an added torrent.
	SettleTimeout time.Duration
	PollInterval  time.Duration

	// VerifyPaths requires mapped save paths to exist on this host.
	VerifyPaths bool
	// LockFile, when set, guards passes across processes.
	LockFile string

	Eligible filter.Eligibility
	Paths    *pathmap.Mapper
}

// Synchronizer runs transfer passes. Only one pass runs at a time.
type Synchronizer struct {
	clients  Clients
	history  History
	notifier notifier.Notifier
	opts     Options
	logger   zerolog.Logger

	mu  sync.Mutex
	wg  sync.WaitGroup
	now func() time.Time

	verify func(source, target string) (bool, error)
}

// New creates a Synchronizer.
func New(clients Clients, store History, n notifier.Notifier, opts Options, logger zerolog.Logger) *Synchronizer {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = defaultSettleTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Eligible == nil {
		opts.Eligible = filter.AcceptAll
	}
	if n == nil {
		n = notifier.Nop{}
	}
	return &Synchronizer{
		clients:  clients,
		history:  store,
		notifier: n,
		opts:     opts,
		logger:   logger.With().Str("component", "transfer").Logger(),
		now:      time.Now,
		verify:   pathmap.Verify,
	}
}

// Run performs one pass and returns its summary. It returns
// ErrAlreadyRunning when another pass holds the guard.
func (s *Synchronizer) Run(ctx context.Context) (*Summary, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.pass(ctx)
}

// Start launches a pass in the background. The guard is taken before Start
// returns, so a busy synchronizer reports ErrAlreadyRunning synchronously.
func (s *Synchronizer) Start(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		if _, err := s.pass(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Transfer pass failed")
		}
	}()
	return nil
}

// Wait blocks until every pass launched by Start has returned.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

func (s *Synchronizer) acquire() (func(), error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	if s.opts.LockFile == "" {
		return s.mu.Unlock, nil
	}

	lock := flock.New(s.opts.LockFile)
	ok, err := lock.TryLock()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire lock %s: %w", s.opts.LockFile, err)
	}
	if !ok {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Str("lock", s.opts.LockFile).Msg("Failed to release lock")
		}
		s.mu.Unlock()
	}, nil
}

func (s *Synchronizer) pass(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Source:    s.opts.Source,
		Target:    s.opts.Target,
		DryRun:    s.opts.DryRun,
		StartedAt: s.now(),
	}
	log := s.logger.With().Str("run_id", summary.RunID).Logger()

	if strings.EqualFold(strings.TrimSpace(s.opts.Source), strings.TrimSpace(s.opts.Target)) {
		return nil, fmt.Errorf("%w: %s", ErrSameClient, s.opts.Source)
	}

	src, err := s.clients.Get(ctx, s.opts.Source)
	if err != nil {
		return nil, fmt.Errorf("source client unavailable: %w", err)
	}
	dst, err := s.clients.Get(ctx, s.opts.Target)
	if err != nil {
		return nil, fmt.Errorf("target client unavailable: %w", err)
	}

	torrents, err := src.CompletedTorrents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list source torrents: %w", err)
	}
	summary.Total = len(torrents)

	if len(torrents) == 0 {
		log.Info().Str("source", src.Name()).Msg("No completed torrents on source")
		summary.FinishedAt = s.now()
		return summary, nil
	}

	log.Info().
		Str("source", src.Name()).
		Str("target", dst.Name()).
		Int("torrents", len(torrents)).
		Bool("dry_run", s.opts.DryRun).
		Msg("Starting transfer pass")

	for _, t := range torrents {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now()
			return summary, err
		}
		s.processTorrent(ctx, log, src, dst, t, summary)
	}

	summary.FinishedAt = s.now()
	log.Info().
		Int("transferred", summary.Transferred).
		Int("merged", summary.Merged).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("filtered", summary.Filtered).
		Int("known", summary.Known).
		Dur("duration", summary.Duration()).
		Msg("Transfer pass complete")

	s.notify(ctx, log, summary)
	return summary, nil
}

func (s *Synchronizer) notify(ctx context.Context, log zerolog.Logger, summary *Summary) {
	if !s.opts.Notify || s.opts.DryRun || !summary.Actionable() {
		return
	}
	if err := s.notifier.Notify(ctx, summary.Message()); err != nil {
		log.Warn().Err(err).Msg("Failed to send notification")
	}
}

// processTorrent handles one source torrent. Errors are logged and counted
// so the rest of the batch still runs.
func (s *Synchronizer) processTorrent(ctx context.Context, log zerolog.Logger, src, dst downloader.Client, t downloader.Torrent, summary *Summary) {
	t.Hash = downloader.NormalizeHash(t.Hash)
	if t.Hash == "" {
		return
	}
	log = log.With().Str("hash", t.Hash).Str("name", t.Name).Logger()

	known, err := s.history.Has(ctx, t.Hash)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check history")
		summary.fail(t.Name)
		return
	}
	if known {
		summary.Known++
		return
	}

	ok, err := s.opts.Eligible(t)
	if err != nil {
		log.Warn().Err(err).Msg("Filter evaluation failed, skipping torrent")
		summary.Filtered++
		return
	}
	if !ok {
		log.Debug().Msg("Torrent excluded by filter")
		summary.Filtered++
		return
	}

	scenario, err := s.transfer(ctx, log, src, dst, &t)
	if err != nil {
		log.Error().Err(err).Msg("Transfer failed")
		summary.fail(t.Name)
		return
	}

	if scenario == ScenarioSkip || s.opts.DryRun {
		summary.record(scenario, t.Name, t.Size)
		return
	}

	// Without a record the next pass would handle the torrent again, so
	// the source keeps seeding and the torrent counts as failed.
	if err := s.history.Record(ctx, history.Record{
		Hash:      t.Hash,
		Name:      t.Name,
		Scenario:  string(scenario),
		Source:    src.Name(),
		Target:    dst.Name(),
		CreatedAt: s.now(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to write history record, source left running")
		summary.fail(t.Name)
		return
	}
	summary.record(scenario, t.Name, t.Size)

	if s.opts.PauseSource {
		if err := src.Pause(ctx, t.Hash); err != nil {
			log.Warn().Err(err).Msg("Failed to pause source torrent")
		} else {
			log.Info().Msg("Paused source torrent")
		}
	}
}

// transfer gathers metadata, decides the scenario and applies it.
func (s *Synchronizer) transfer(ctx context.Context, log zerolog.Logger, src, dst downloader.Client, t *downloader.Torrent) (Scenario, error) {
	if err := s.loadMetadata(ctx, src, t); err != nil {
		return "", &TorrentError{Hash: t.Hash, Name: t.Name, Op: "read metadata", Err: err}
	}

	onTarget, err := dst.Lookup(ctx, t.Hash)
	if err != nil && !errors.Is(err, downloader.ErrTorrentNotFound) {
		return "", &TorrentError{Hash: t.Hash, Name: t.Name, Op: "query target", Err: err}
	}
	if errors.Is(err, downloader.ErrTorrentNotFound) {
		onTarget = nil
	}

	scenario, missing := Decide(onTarget, t.Trackers)
	log = log.With().Str("scenario", string(scenario)).Logger()

	if s.opts.DryRun {
		log.Info().Int("missing_trackers", len(missing)).Msg("Dry run, no changes made")
		return scenario, nil
	}

	switch scenario {
	case ScenarioMove:
		err = s.move(ctx, log, src, dst, t)
	case ScenarioMergeTrackers:
		err = dst.AddTrackers(ctx, t.Hash, missing, onTarget.Trackers)
		if err != nil {
			err = &TorrentError{Hash: t.Hash, Name: t.Name, Op: "merge trackers", Err: err}
		} else {
			log.Info().Strs("trackers", missing).Msg("Merged trackers into target torrent")
		}
	case ScenarioSkip:
		log.Info().Msg("Target already has torrent and trackers, skipping")
	}
	if err != nil {
		return "", err
	}
	return scenario, nil
}

// loadMetadata fetches trackers and file flags from the source concurrently.
func (s *Synchronizer) loadMetadata(ctx context.Context, src downloader.Client, t *downloader.Torrent) error {
	var (
		trackers []string
		files    []downloader.File
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trackers, err = src.Trackers(gctx, t.Hash)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = src.Files(gctx, t.Hash)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	t.Trackers = metainfo.SanitizeTrackers(trackers)
	t.Files = files
	return nil
}

// content holds what is sent to the target for a move.
type content struct {
	metaInfo []byte
	magnet   string
	// verified is set when metaInfo hashes to the source torrent's infohash,
	// so file indices line up on both sides.
	verified bool
	files    int
}

func (s *Synchronizer) loadContent(ctx context.Context, log zerolog.Logger, src downloader.Client, t *downloader.Torrent) content {
	data, err := src.Export(ctx, t.Hash)
	if err == nil && len(data) > 0 {
		mi, perr := metainfo.Parse(data)
		switch {
		case perr != nil:
			log.Warn().Err(perr).Msg("Exported metadata is not a valid torrent, using magnet")
		case mi.InfoHash != t.Hash:
			log.Warn().Str("infohash", mi.InfoHash).Msg("Exported metadata infohash differs, file selection will not be copied")
			return content{metaInfo: data}
		default:
			return content{metaInfo: data, verified: true, files: len(mi.Files)}
		}
	} else if err != nil && !errors.Is(err, downloader.ErrExportUnsupported) {
		log.Warn().Err(err).Msg("Export failed, using magnet")
	}

	return content{magnet: metainfo.Magnet(t.Hash, t.Name, t.Trackers)}
}

func (s *Synchronizer) move(ctx context.Context, log zerolog.Logger, src, dst downloader.Client, t *downloader.Torrent) error {
	savePath, mapped := s.opts.Paths.Map(t.SavePath)
	if mapped {
		log.Debug().Str("from", t.SavePath).Str("to", savePath).Msg("Mapped save path")
	}
	if s.opts.VerifyPaths && savePath != "" {
		sameFS, err := s.verify(t.SavePath, savePath)
		switch {
		case errors.Is(err, pathmap.ErrDeviceUnknown):
			log.Warn().Err(err).Str("save_path", savePath).Msg("Could not tell whether the target save path shares the source filesystem")
		case err != nil:
			return &TorrentError{Hash: t.Hash, Name: t.Name, Op: "verify path", Err: err}
		case !sameFS:
			log.Warn().Str("save_path", savePath).Msg("Target save path is on a different filesystem than the source")
		}
	}

	c := s.loadContent(ctx, log, src, t)
	req := downloader.AddRequest{
		Hash:     t.Hash,
		Name:     t.Name,
		MetaInfo: c.metaInfo,
		Magnet:   c.magnet,
		SavePath: savePath,
		Category: t.Category,
		Tags:     t.Tags,
		Paused:   s.opts.AddPaused,
	}
	if err := dst.Add(ctx, req); err != nil {
		return &TorrentError{Hash: t.Hash, Name: t.Name, Op: "add", Err: err}
	}
	log.Info().
		Str("save_path", savePath).
		Bool("metainfo", req.IsMetaInfo()).
		Msg("Added torrent to target")

	added, err := s.waitRegistered(ctx, dst, t.Hash)
	if err != nil {
		return &TorrentError{Hash: t.Hash, Name: t.Name, Op: "wait for target", Err: err}
	}

	if missing := metainfo.MissingTrackers(t.Trackers, added.Trackers); len(missing) > 0 {
		if err := dst.AddTrackers(ctx, t.Hash, missing, added.Trackers); err != nil {
			log.Warn().Err(err).Msg("Failed to inject trackers into added torrent")
		}
	}

	unwanted := t.UnwantedIndices()
	if len(unwanted) == 0 {
		return nil
	}
	if !c.verified {
		log.Info().Int("unwanted", len(unwanted)).Msg("Metadata not verified, file selection not copied")
		return nil
	}
	for _, idx := range unwanted {
		if idx < 0 || idx >= c.files {
			log.Warn().Int("index", idx).Msg("File index out of range, file selection not copied")
			return nil
		}
	}
	if err := dst.SetUnwantedFiles(ctx, t.Hash, unwanted); err != nil {
		return &TorrentError{Hash: t.Hash, Name: t.Name, Op: "copy file selection", Err: err}
	}
	log.Info().Ints("unwanted", unwanted).Msg("Copied file selection")
	return nil
}

// waitRegistered polls the target until it lists hash or the settle timeout
// expires.
func (s *Synchronizer) waitRegistered(ctx context.Context, dst downloader.Client, hash string) (*downloader.Torrent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		t, err := dst.Lookup(ctx, hash)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, downloader.ErrTorrentNotFound) && ctx.Err() == nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrNotRegistered
		case <-ticker.C:
		}
	}
}
