// Package metainfo parses .torrent files and builds magnet links.
package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/zeebo/bencode"
)

// ErrMissingInfo is returned when the metainfo has no info dictionary.
var ErrMissingInfo = errors.New("metainfo missing info dictionary")

// MetaInfo is the subset of a .torrent file the transfer needs.
type MetaInfo struct {
	InfoHash string
	Name     string
	Files    []File
	Announce []string
}

// File is one entry of the info dictionary, in index order.
type File struct {
	Index  int
	Path   string
	Length int64
}

type rawTorrent struct {
	Announce     string             `bencode:"announce"`
	AnnounceList [][]string         `bencode:"announce-list"`
	Info         bencode.RawMessage `bencode:"info"`
}

type rawFile struct {
	Length int64    `bencode:"length"`
	Path   []string `bencode:"path"`
}

type rawInfo struct {
	Name   string    `bencode:"name"`
	Length int64     `bencode:"length"`
	Files  []rawFile `bencode:"files"`
}

// Parse decodes .torrent bytes.
func Parse(data []byte) (*MetaInfo, error) {
	var t rawTorrent
	if err := bencode.DecodeBytes(data, &t); err != nil {
		return nil, fmt.Errorf("decode metainfo: %w", err)
	}
	if len(t.Info) == 0 {
		return nil, ErrMissingInfo
	}

	var info rawInfo
	if err := bencode.DecodeBytes(t.Info, &info); err != nil {
		return nil, fmt.Errorf("decode info dictionary: %w", err)
	}

	sum := sha1.Sum(t.Info)
	mi := &MetaInfo{
		InfoHash: hex.EncodeToString(sum[:]),
		Name:     info.Name,
	}

	if len(info.Files) == 0 {
		mi.Files = []File{{Index: 0, Path: info.Name, Length: info.Length}}
	} else {
		mi.Files = make([]File, len(info.Files))
		for i, f := range info.Files {
			mi.Files[i] = File{
				Index:  i,
				Path:   path.Join(append([]string{info.Name}, f.Path...)...),
				Length: f.Length,
			}
		}
	}

	var announce []string
	if t.Announce != "" {
		announce = append(announce, t.Announce)
	}
	for _, tier := range t.AnnounceList {
		announce = append(announce, tier...)
	}
	mi.Announce = SanitizeTrackers(announce)

	return mi, nil
}

// TotalLength returns the summed length of all files.
func (m *MetaInfo) TotalLength() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Length
	}
	return n
}

// Magnet builds a magnet URI from an infohash, display name and trackers.
func Magnet(infoHash, name string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(infoHash)
	if name != "" {
		// Spaces as %20, some clients show a literal + otherwise.
		b.WriteString("&dn=")
		b.WriteString(strings.ReplaceAll(url.QueryEscape(name), "+", "%20"))
	}
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// SanitizeTrackers trims announce URLs, keeps only http(s) and udp ones and
// removes duplicates while preserving order.
func SanitizeTrackers(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !IsAnnounceURL(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// IsAnnounceURL reports whether u looks like a tracker announce URL.
func IsAnnounceURL(u string) bool {
	return strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "udp://")
}

// MissingTrackers returns the entries of want absent from have, in want order.
func MissingTrackers(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, h := range have {
		present[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, w := range SanitizeTrackers(want) {
		if _, ok := present[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}
