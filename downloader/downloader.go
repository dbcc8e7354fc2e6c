package downloader

import (
	"context"
	"strings"
	"time"
)

// Kind identifies the torrent client implementation behind a Client.
type Kind string

const (
	KindQBittorrent  Kind = "qbittorrent"
	KindTransmission Kind = "transmission"
)

// Torrent is the client-neutral view of a torrent.
type Torrent struct {
	Hash     string
	Name     string
	SavePath string
	Category string
	Tags     []string
	Trackers []string
	Files    []File
	Progress float64
	Size     int64
	State    string
	// CompletedOn is zero when the client does not report it.
	CompletedOn time.Time
}

// File is a single entry of a torrent's file list.
type File struct {
	Index  int
	Path   string
	Size   int64
	Wanted bool
}

// UnwantedIndices returns the indices of files excluded from download.
func (t *Torrent) UnwantedIndices() []int {
	var out []int
	for _, f := range t.Files {
		if !f.Wanted {
			out = append(out, f.Index)
		}
	}
	return out
}

// HasTag reports whether the torrent carries tag, ignoring case.
func (t *Torrent) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// AddRequest describes a torrent to be added to a client. Exactly one of
// MetaInfo or Magnet is set.
type AddRequest struct {
	Hash     string
	Name     string
	MetaInfo []byte
	Magnet   string
	SavePath string
	Category string
	Tags     []string
	Paused   bool
}

// IsMetaInfo reports whether the request carries .torrent bytes.
func (r AddRequest) IsMetaInfo() bool {
	return len(r.MetaInfo) > 0
}

// Client is the set of torrent client operations the synchronizer needs.
type Client interface {
	Name() string
	Kind() Kind
	Ping(ctx context.Context) error

	CompletedTorrents(ctx context.Context) ([]Torrent, error)
	// Lookup returns ErrTorrentNotFound when the hash is absent.
	Lookup(ctx context.Context, hash string) (*Torrent, error)
	Trackers(ctx context.Context, hash string) ([]string, error)
	Files(ctx context.Context, hash string) ([]File, error)
	// Export returns ErrExportUnsupported when the client has no export call.
	Export(ctx context.Context, hash string) ([]byte, error)

	Add(ctx context.Context, req AddRequest) error
	AddTrackers(ctx context.Context, hash string, missing, existing []string) error
	SetUnwantedFiles(ctx context.Context, hash string, indices []int) error
	Pause(ctx context.Context, hash string) error
}

// NormalizeHash lowercases and trims an infohash.
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// SplitTags splits a comma separated tag string, dropping empty entries.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
