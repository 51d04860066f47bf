package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
)

var _ list.Item = torrentItem{}

// torrentItem wraps [models.Torrent] to implement [list.Item].
type torrentItem struct {
	torrent models.Torrent
}

func (i torrentItem) FilterValue() string { return i.torrent.Name }
func (i torrentItem) Title() string       { return i.torrent.Name }
func (i torrentItem) Description() string {
	t := i.torrent
	desc := fmt.Sprintf("%s • %d%% of %s", styles.Status(t).Render(t.Status.String()), t.Percent(), shared.FormatBytes(t.TotalSize))
	if t.Status.Active() {
		desc = fmt.Sprintf("%s • ↓ %s ↑ %s • ETA %s", desc, shared.FormatRate(t.RateDownload), shared.FormatRate(t.RateUpload), shared.FormatETA(t.Eta))
	}
	if t.ErrorString != "" {
		desc = fmt.Sprintf("%s • %s", desc, styles.err.Render(t.ErrorString))
	}
	return desc
}

func torrentItems(torrents []models.Torrent) []list.Item {
	items := make([]list.Item, len(torrents))
	for i, t := range torrents {
		items[i] = torrentItem{torrent: t}
	}
	return items
}
