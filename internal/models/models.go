package models

import (
	"fmt"
	"time"
)

// TorrentStatus is Transmission's torrent status code.
type TorrentStatus int

const (
	StatusStopped TorrentStatus = iota
	StatusCheckWait
	StatusChecking
	StatusDownloadWait
	StatusDownloading
	StatusSeedWait
	StatusSeeding
)

func (s TorrentStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusCheckWait:
		return "check-wait"
	case StatusChecking:
		return "checking"
	case StatusDownloadWait:
		return "download-wait"
	case StatusDownloading:
		return "downloading"
	case StatusSeedWait:
		return "seed-wait"
	case StatusSeeding:
		return "seeding"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Active reports whether the torrent is queued or transferring (i.e. not stopped).
func (s TorrentStatus) Active() bool {
	return s != StatusStopped
}

// Torrent represents a torrent-get object.
//
// Don't rely on ID across requests; the daemon may renumber torrents. HashString is stable.
type Torrent struct {
	ID              int           `json:"id"`
	HashString      string        `json:"hashString"`
	Name            string        `json:"name"`
	PercentDone     float64       `json:"percentDone"`
	PercentComplete float64       `json:"percentComplete"`
	TotalSize       int64         `json:"totalSize"`
	Eta             int64         `json:"eta"` // seconds; negative when unknown or not applicable
	Status          TorrentStatus `json:"status"`
	Labels          []string      `json:"labels"`
	AddedDate       int64         `json:"addedDate"`   // unix seconds
	DateCreated     int64         `json:"dateCreated"` // unix seconds
	RateDownload    int64         `json:"rateDownload"`
	RateUpload      int64         `json:"rateUpload"`
	Error           int           `json:"error"`
	ErrorString     string        `json:"errorString"`
}

// Percent returns the download progress as a whole percentage.
func (t Torrent) Percent() int {
	return int(t.PercentDone*100 + 0.5)
}

// Added returns the time the torrent was added to the daemon.
func (t Torrent) Added() time.Time {
	return time.Unix(t.AddedDate, 0)
}

// ETA returns the remaining time, false when the daemon doesn't know it.
func (t Torrent) ETA() (time.Duration, bool) {
	if t.Eta < 0 {
		return 0, false
	}
	return time.Duration(t.Eta) * time.Second, true
}

// TorrentAdded is the torrent-add result. The daemon reports either a new or a duplicate torrent.
type TorrentAdded struct {
	ID         int    `json:"id"`
	HashString string `json:"hashString"`
	Name       string `json:"name"`
	Duplicate  bool   `json:"-"`
}
