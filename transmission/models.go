package transmission

import (
	"time"

	"github.com/hekmon/transmissionrpc/v3"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/metainfo"
)

// torrentStatus mirrors the status codes Transmission reports. The names
// follow qBittorrent's lowercase state strings so filters read the same
// for both clients.
type torrentStatus int64

const (
	statusStopped torrentStatus = iota
	statusCheckWait
	statusCheck
	statusDownloadWait
	statusDownload
	statusSeedWait
	statusSeed
)

func (s torrentStatus) String() string {
	switch s {
	case statusStopped:
		return "stopped"
	case statusCheckWait:
		return "check_wait"
	case statusCheck:
		return "checking"
	case statusDownloadWait:
		return "download_wait"
	case statusDownload:
		return "downloading"
	case statusSeedWait:
		return "seed_wait"
	case statusSeed:
		return "seeding"
	}
	return "unknown"
}

func announceURLs(t transmissionrpc.Torrent) []string {
	urls := make([]string, 0, len(t.Trackers))
	for _, tr := range t.Trackers {
		urls = append(urls, tr.Announce)
	}
	return urls
}

// files pairs the file list with fileStats. A file without stats counts
// as wanted.
func files(t transmissionrpc.Torrent) ([]downloader.File, int64) {
	var total int64
	out := make([]downloader.File, len(t.Files))
	for i, f := range t.Files {
		wanted := true
		if i < len(t.FileStats) {
			wanted = t.FileStats[i].Wanted
		}
		out[i] = downloader.File{Index: i, Path: f.Name, Size: f.Length, Wanted: wanted}
		total += f.Length
	}
	return out, total
}

func convertTorrent(t transmissionrpc.Torrent) downloader.Torrent {
	fileList, size := files(t)

	info := downloader.Torrent{
		Hash:     downloader.NormalizeHash(deref(t.HashString)),
		Name:     deref(t.Name),
		SavePath: deref(t.DownloadDir),
		Tags:     t.Labels,
		Trackers: metainfo.SanitizeTrackers(announceURLs(t)),
		Files:    fileList,
		Size:     size,
		State:    "unknown",
	}
	if t.PercentDone != nil {
		info.Progress = *t.PercentDone
	}
	if t.Status != nil {
		info.State = torrentStatus(*t.Status).String()
	}
	// doneDate is 0 until the torrent finishes.
	if t.DoneDate != nil && t.DoneDate.After(time.Unix(0, 0)) {
		info.CompletedOn = *t.DoneDate
	}
	return info
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
