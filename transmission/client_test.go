package transmission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/seedshift/downloader"
)

const sessionHeader = "X-Transmission-Session-Id"

type recordedCall struct {
	Method    string
	Arguments map[string]any
}

// fakeDaemon emulates the Transmission RPC endpoint including the
// session id handshake.
type fakeDaemon struct {
	t        *testing.T
	mu       sync.Mutex
	calls    []recordedCall
	handlers map[string]func(args map[string]any) (string, any)
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, _ := r.BasicAuth()
	if user != "admin" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get(sessionHeader) != "session-1" {
		w.Header().Set(sessionHeader, "session-1")
		w.WriteHeader(http.StatusConflict)
		return
	}

	var req struct {
		Method    string         `json:"method"`
		Arguments map[string]any `json:"arguments"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: req.Method, Arguments: req.Arguments})
	handler := f.handlers[req.Method]
	f.mu.Unlock()

	result, args := "success", any(nil)
	if handler != nil {
		result, args = handler(req.Arguments)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result, "arguments": args})
}

func (f *fakeDaemon) methodCalls(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func newFake(t *testing.T, handlers map[string]func(map[string]any) (string, any)) (*fakeDaemon, *Client) {
	t.Helper()
	fake := &fakeDaemon{t: t, handlers: handlers}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := NewClient("tr", server.URL+"/transmission/rpc", "admin", "secret", zerolog.Nop())
	require.NoError(t, err)
	return fake, client
}

var sampleTorrents = map[string]any{
	"torrents": []map[string]any{
		{
			"id":          1,
			"hashString":  "AAAA",
			"name":        "Done",
			"doneDate":    1700000000,
			"downloadDir": "/downloads",
			"labels":      []string{"movies"},
			"percentDone": 1.0,
			"totalSize":   2048,
			"status":      6,
			"trackers":    []map[string]any{{"announce": "https://t.example/announce", "tier": 0}},
			"files":       []map[string]any{{"name": "Done/a.mkv", "length": 2000}, {"name": "Done/b.nfo", "length": 48}},
			"fileStats":   []map[string]any{{"wanted": true}, {"wanted": false}},
		},
		{
			"id":          2,
			"hashString":  "bbbb",
			"name":        "Partial",
			"percentDone": 0.5,
		},
	},
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("tr", "", "", "", zerolog.Nop())
	require.Error(t, err)
}

func TestClient_Ping(t *testing.T) {
	_, c := newFake(t, map[string]func(map[string]any) (string, any){
		"session-get": func(map[string]any) (string, any) {
			return "success", map[string]any{"version": "4.0.5", "rpc-version": 17}
		},
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestClient_BadCredentials(t *testing.T) {
	fake := &fakeDaemon{t: t}
	server := httptest.NewServer(fake)
	defer server.Close()

	c, err := NewClient("tr", server.URL, "admin", "wrong", zerolog.Nop())
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectionFailed))
}

func TestClient_CompletedTorrents(t *testing.T) {
	_, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-get": func(map[string]any) (string, any) { return "success", sampleTorrents },
	})

	torrents, err := c.CompletedTorrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 1)

	got := torrents[0]
	assert.Equal(t, "aaaa", got.Hash)
	assert.Equal(t, "/downloads", got.SavePath)
	assert.Equal(t, []string{"movies"}, got.Tags)
	assert.Equal(t, []string{"https://t.example/announce"}, got.Trackers)
	assert.Equal(t, "seeding", got.State)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got.CompletedOn.UTC())
	assert.Equal(t, []int{1}, got.UnwantedIndices())
}

func TestClient_LookupNotFound(t *testing.T) {
	_, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-get": func(map[string]any) (string, any) {
			return "success", map[string]any{"torrents": []any{}}
		},
	})

	_, err := c.Lookup(context.Background(), "cccc")
	assert.ErrorIs(t, err, downloader.ErrTorrentNotFound)
}

func TestClient_ExportUnsupported(t *testing.T) {
	_, c := newFake(t, nil)
	_, err := c.Export(context.Background(), "aaaa")
	assert.ErrorIs(t, err, downloader.ErrExportUnsupported)
}

func TestClient_Add(t *testing.T) {
	fake, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-add": func(map[string]any) (string, any) {
			return "success", map[string]any{"torrent-added": map[string]any{"id": 3, "hashString": "aaaa", "name": "x"}}
		},
	})
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, downloader.AddRequest{
		MetaInfo: []byte("d4:infod4:name1:aee"),
		SavePath: "/data",
		Category: "movies",
	}))
	require.NoError(t, c.Add(ctx, downloader.AddRequest{
		Magnet: "magnet:?xt=urn:btih:aaaa",
		Tags:   []string{"hd"},
		Paused: true,
	}))

	calls := fake.methodCalls("torrent-add")
	require.Len(t, calls, 2)

	first := calls[0].Arguments
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("d4:infod4:name1:aee")), first["metainfo"])
	assert.Equal(t, "/data", first["download-dir"])
	assert.Equal(t, false, first["paused"])
	assert.Equal(t, []any{"movies"}, first["labels"])
	assert.Nil(t, first["filename"])

	second := calls[1].Arguments
	assert.Equal(t, "magnet:?xt=urn:btih:aaaa", second["filename"])
	assert.Equal(t, true, second["paused"])
	assert.Equal(t, []any{"hd"}, second["labels"])
}

func TestClient_AddFailureResult(t *testing.T) {
	_, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-add": func(map[string]any) (string, any) { return "invalid or corrupt torrent file", nil },
	})

	err := c.Add(context.Background(), downloader.AddRequest{Hash: "aaaa", Magnet: "magnet:?xt=urn:btih:aaaa"})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "torrent-add", rpcErr.Method)
	assert.Equal(t, "aaaa", rpcErr.Hash)
	assert.Contains(t, err.Error(), "invalid or corrupt torrent file")
}

// knownTorrent answers torrent-get for the id lookups torrent-set needs.
func knownTorrent(map[string]any) (string, any) {
	return "success", map[string]any{"torrents": []map[string]any{{"id": 7, "hashString": "aaaa"}}}
}

// trackerLines drops the blank tier separators from a trackerList value.
func trackerLines(v any) []string {
	s, _ := v.(string)
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestClient_AddTrackers(t *testing.T) {
	tests := []struct {
		name           string
		trackerListOK  bool
		wantSetCalls   int
		wantTrackerAdd []any
	}{
		{name: "trackerList accepted", trackerListOK: true, wantSetCalls: 1},
		{name: "fallback to trackerAdd", trackerListOK: false, wantSetCalls: 2, wantTrackerAdd: []any{"udp://new.example:80"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, c := newFake(t, map[string]func(map[string]any) (string, any){
				"torrent-get": knownTorrent,
				"torrent-set": func(args map[string]any) (string, any) {
					if list, ok := args["trackerList"]; ok && list != nil && !tt.trackerListOK {
						return "Invalid tracker list", nil
					}
					return "success", nil
				},
			})

			err := c.AddTrackers(context.Background(), "aaaa",
				[]string{"udp://new.example:80", "https://old.example/a"},
				[]string{"https://old.example/a"})
			require.NoError(t, err)

			calls := fake.methodCalls("torrent-set")
			require.Len(t, calls, tt.wantSetCalls)
			assert.Equal(t, []any{float64(7)}, calls[0].Arguments["ids"])
			assert.Equal(t, []string{"https://old.example/a", "udp://new.example:80"}, trackerLines(calls[0].Arguments["trackerList"]))
			assert.Contains(t, calls[0].Arguments["trackerList"], "\n\n")
			if tt.wantTrackerAdd != nil {
				assert.Equal(t, tt.wantTrackerAdd, calls[1].Arguments["trackerAdd"])
				assert.Empty(t, trackerLines(calls[1].Arguments["trackerList"]))
			}
		})
	}
}

func TestClient_AddTrackersNothingMissing(t *testing.T) {
	fake, c := newFake(t, nil)
	err := c.AddTrackers(context.Background(), "aaaa", []string{"https://old.example/a"}, []string{"https://old.example/a"})
	require.NoError(t, err)
	assert.Empty(t, fake.methodCalls("torrent-set"))
}

func TestClient_AddTrackersBothFail(t *testing.T) {
	_, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-get": knownTorrent,
		"torrent-set": func(map[string]any) (string, any) { return "no", nil },
	})
	err := c.AddTrackers(context.Background(), "aaaa", []string{"https://x.example/a"}, nil)
	assert.Error(t, err)
}

func TestClient_AddTrackersUnknownTorrent(t *testing.T) {
	fake, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-get": func(map[string]any) (string, any) {
			return "success", map[string]any{"torrents": []any{}}
		},
	})
	err := c.AddTrackers(context.Background(), "aaaa", []string{"https://x.example/a"}, nil)
	assert.ErrorIs(t, err, downloader.ErrTorrentNotFound)
	assert.Empty(t, fake.methodCalls("torrent-set"))
}

func TestClient_SetUnwantedFilesAndPause(t *testing.T) {
	fake, c := newFake(t, map[string]func(map[string]any) (string, any){
		"torrent-get": knownTorrent,
	})
	ctx := context.Background()

	require.NoError(t, c.SetUnwantedFiles(ctx, "aaaa", []int{0, 2}))
	require.NoError(t, c.Pause(ctx, "aaaa"))

	set := fake.methodCalls("torrent-set")
	require.Len(t, set, 1)
	assert.Equal(t, []any{float64(7)}, set[0].Arguments["ids"])
	assert.Equal(t, []any{float64(0), float64(2)}, set[0].Arguments["files-unwanted"])

	stop := fake.methodCalls("torrent-stop")
	require.Len(t, stop, 1)
	assert.Equal(t, []any{"aaaa"}, stop[0].Arguments["ids"])
}
