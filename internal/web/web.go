// Package web renders the HTMX front end served by the proxy.
//
// # Pages
//
// Full pages share one layout and are rendered with [Renderer.Page]:
//
//	login       → credential form (POST /login)
//	index       → torrent list, live through the htmx SSE extension on /sse/torrents
//	torrent     → one torrent, live through /sse/torrent?hash=
//	add-torrent → magnet form (POST /add-torrent)
//
// # Partials
//
// [Renderer.List] and [Renderer.Torrent] render the fragments pushed as SSE update events and
// served by the /stub endpoints. Both return bytes so the push engine can fingerprint them.
//
// Templates live in templates/ and are embedded in the binary.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "index", "torrent", "add-torrent", "unauthorized"}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

// LoginPage is the data for the login page.
type LoginPage struct {
	Username string
	Error    string
}

// IndexPage is the data for the torrent list page.
type IndexPage struct {
	Username  string
	Query     models.Query
	Torrents  []models.Torrent
	StreamURL string
}

// TorrentPage is the data for the torrent detail page.
type TorrentPage struct {
	Username  string
	Torrent   *models.Torrent
	StreamURL string
}

// AddTorrentPage is the data for the add torrent form.
type AddTorrentPage struct {
	Username string
	Magnet   string
	Error    string
	Added    *models.TorrentAdded
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}

	partials, err := template.New("partials").Funcs(funcs).ParseFS(templateFS, "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	r.partials = partials

	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}

	return r, nil
}

// Page renders a full page.
func (r *Renderer) Page(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// List renders the torrent list fragment.
func (r *Renderer) List(torrents []models.Torrent) ([]byte, error) {
	return r.partial("torrent-list", torrents)
}

// Torrent renders the torrent detail fragment.
func (r *Renderer) Torrent(t *models.Torrent) ([]byte, error) {
	return r.partial("torrent-detail", t)
}

func (r *Renderer) partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// StreamURL builds a stream path carrying the query parameters.
func StreamURL(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

var funcs = template.FuncMap{
	"bytes":   shared.FormatBytes,
	"rate":    shared.FormatRate,
	"eta":     func(t models.Torrent) string { return shared.FormatETA(t.Eta) },
	"percent": func(t models.Torrent) int { return t.Percent() },
	"sortKeys": func() []models.SortKey {
		return []models.SortKey{models.SortAdded, models.SortName, models.SortProgress, models.SortSize, models.SortStatus, models.SortEta}
	},
	"date": func(unix int64) string {
		if unix <= 0 {
			return "-"
		}
		return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
	},
}
