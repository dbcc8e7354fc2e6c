package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/history"
	"github.com/s0up4200/seedshift/notifier"
)

// fakeClient is an in-memory downloader.Client.
type fakeClient struct {
	name string
	kind downloader.Kind

	mu       sync.Mutex
	torrents map[string]*downloader.Torrent
	exports  map[string][]byte

	added        []downloader.AddRequest
	trackerCalls map[string][]string
	unwanted     map[string][]int
	paused       []string

	listErr     error
	addErr      error
	trackersErr error
	lookupErr   error
	// hideAdded keeps added torrents out of Lookup.
	hideAdded bool
}

func newFakeClient(name string, kind downloader.Kind) *fakeClient {
	return &fakeClient{
		name:         name,
		kind:         kind,
		torrents:     make(map[string]*downloader.Torrent),
		exports:      make(map[string][]byte),
		trackerCalls: make(map[string][]string),
		unwanted:     make(map[string][]int),
	}
}

func (f *fakeClient) put(t downloader.Torrent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents[t.Hash] = &t
}

func (f *fakeClient) Name() string                   { return f.name }
func (f *fakeClient) Kind() downloader.Kind          { return f.kind }
func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) CompletedTorrents(ctx context.Context) ([]downloader.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]downloader.Torrent, 0, len(f.torrents))
	for _, t := range f.torrents {
		if t.Progress >= 1 {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeClient) Lookup(ctx context.Context, hash string) (*downloader.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	t, ok := f.torrents[hash]
	if !ok {
		return nil, downloader.ErrTorrentNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeClient) Trackers(ctx context.Context, hash string) ([]string, error) {
	t, err := f.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	return t.Trackers, nil
}

func (f *fakeClient) Files(ctx context.Context, hash string) ([]downloader.File, error) {
	t, err := f.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	return t.Files, nil
}

func (f *fakeClient) Export(ctx context.Context, hash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kind == downloader.KindTransmission {
		return nil, downloader.ErrExportUnsupported
	}
	data, ok := f.exports[hash]
	if !ok {
		return nil, fmt.Errorf("export %s: %w", hash, downloader.ErrTorrentNotFound)
	}
	return data, nil
}

func (f *fakeClient) Add(ctx context.Context, req downloader.AddRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, req)
	if !f.hideAdded {
		f.torrents[req.Hash] = &downloader.Torrent{Hash: req.Hash, Name: req.Name, SavePath: req.SavePath, Tags: req.Tags}
	}
	return nil
}

func (f *fakeClient) AddTrackers(ctx context.Context, hash string, missing, existing []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trackersErr != nil {
		return f.trackersErr
	}
	f.trackerCalls[hash] = append(f.trackerCalls[hash], missing...)
	if t, ok := f.torrents[hash]; ok {
		t.Trackers = append(t.Trackers, missing...)
	}
	return nil
}

func (f *fakeClient) SetUnwantedFiles(ctx context.Context, hash string, indices []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unwanted[hash] = indices
	return nil
}

func (f *fakeClient) Pause(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, hash)
	return nil
}

// fakeClients resolves fakeClient instances by name.
type fakeClients map[string]downloader.Client

func (c fakeClients) Get(ctx context.Context, name string) (downloader.Client, error) {
	cl, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", downloader.ErrUnknownClient, name)
	}
	return cl, nil
}

// memHistory is an in-memory History.
type memHistory struct {
	mu        sync.Mutex
	records   map[string]history.Record
	hasErr    error
	recordErr error
}

func newMemHistory() *memHistory {
	return &memHistory{records: make(map[string]history.Record)}
}

func (h *memHistory) Has(ctx context.Context, hash string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasErr != nil {
		return false, h.hasErr
	}
	_, ok := h.records[hash]
	return ok, nil
}

func (h *memHistory) Record(ctx context.Context, r history.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recordErr != nil {
		return h.recordErr
	}
	if _, ok := h.records[r.Hash]; !ok {
		h.records[r.Hash] = r
	}
	return nil
}

// recordingNotifier captures sent messages.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifier.Message
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notifier.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

// blockingClient blocks CompletedTorrents until release is closed.
type blockingClient struct {
	*fakeClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingClient) CompletedTorrents(ctx context.Context) ([]downloader.Torrent, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

var errBoom = errors.New("boom")
