package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
	"github.com/desertthunder/transportal/internal/shared"
	"github.com/desertthunder/transportal/internal/web"
)

// torrentHandler serves the pages, fragments and actions behind a session.
type torrentHandler struct{ *Proxy }

func (h torrentHandler) Routes() []Route {
	gate := []Middleware{RequireSession(h.registry)}

	return []Route{
		{Method: http.MethodGet, Path: "/{$}", Handler: h.index, Middleware: gate},
		{Method: http.MethodGet, Path: "/torrent/{hash}", Handler: h.torrent, Middleware: gate},
		{Method: http.MethodGet, Path: "/stub/torrents", Handler: h.stubList, Middleware: gate},
		{Method: http.MethodGet, Path: "/stub/torrent", Handler: h.stubTorrent, Middleware: gate},
		{Method: http.MethodGet, Path: "/add-torrent", Handler: h.addPage, Middleware: gate},
		{Method: http.MethodPost, Path: "/add-torrent", Handler: h.add, Middleware: gate},
		{Method: http.MethodPost, Path: "/start-torrent", Handler: h.action(models.ActionStart, h.torrents.Start), Middleware: gate},
		{Method: http.MethodPost, Path: "/pause-torrent", Handler: h.action(models.ActionPause, h.torrents.Stop), Middleware: gate},
		{Method: http.MethodPost, Path: "/verify-torrent", Handler: h.action(models.ActionVerify, h.torrents.Verify), Middleware: gate},
	}
}

func (h torrentHandler) index(w http.ResponseWriter, r *http.Request) {
	creds, a, ok := h.credentials(w, r)
	if !ok {
		return
	}

	q := models.ParseQuery(r.URL.Query())
	torrents, err := h.torrents.List(r.Context(), creds, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.page(w, http.StatusOK, "index", web.IndexPage{
		Username:  a.session.Username,
		Query:     q,
		Torrents:  torrents,
		StreamURL: web.StreamURL("/sse/torrents", q.Values()),
	})
}

func (h torrentHandler) torrent(w http.ResponseWriter, r *http.Request) {
	creds, a, ok := h.credentials(w, r)
	if !ok {
		return
	}

	t, err := h.torrents.Details(r.Context(), creds, r.PathValue("hash"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.page(w, http.StatusOK, "torrent", web.TorrentPage{
		Username:  a.session.Username,
		Torrent:   t,
		StreamURL: web.StreamURL("/sse/torrent", url.Values{"hash": {t.HashString}}),
	})
}

func (h torrentHandler) stubList(w http.ResponseWriter, r *http.Request) {
	creds, _, ok := h.credentials(w, r)
	if !ok {
		return
	}

	torrents, err := h.torrents.List(r.Context(), creds, models.ParseQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.renderer.List(torrents)
	if err != nil {
		h.logger.Error("failed to render torrent list", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.fragment(w, data)
}

func (h torrentHandler) stubTorrent(w http.ResponseWriter, r *http.Request) {
	creds, _, ok := h.credentials(w, r)
	if !ok {
		return
	}

	t, err := h.torrents.Details(r.Context(), creds, r.URL.Query().Get("hash"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.renderer.Torrent(t)
	if err != nil {
		h.logger.Error("failed to render torrent", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.fragment(w, data)
}

func (h torrentHandler) addPage(w http.ResponseWriter, r *http.Request) {
	s, _ := SessionFrom(r.Context())
	h.page(w, http.StatusOK, "add-torrent", web.AddTorrentPage{Username: s.Username})
}

func (h torrentHandler) add(w http.ResponseWriter, r *http.Request) {
	creds, a, ok := h.credentials(w, r)
	if !ok {
		return
	}

	magnet := strings.TrimSpace(r.PostFormValue("magnet"))
	paused := r.PostFormValue("paused") == "on"
	data := web.AddTorrentPage{Username: a.session.Username, Magnet: magnet}

	added, err := h.torrents.Add(r.Context(), creds, magnet, paused)
	if errors.Is(err, shared.ErrInvalidInput) {
		data.Error = "A magnet link must start with " + services.MagnetPrefix
		h.page(w, http.StatusBadRequest, "add-torrent", data)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	a.session.Notify()
	h.record(r, models.ActionAdd, a.session.Username, added.HashString, added.Name)

	data.Magnet = ""
	data.Added = added
	h.page(w, http.StatusOK, "add-torrent", data)
}

type torrentAction func(ctx context.Context, creds services.Credentials, hash string) error

// action runs fn on the form's hash, then wakes the session's streams so they show the result
// before the next poll.
func (h torrentHandler) action(name models.AuditAction, fn torrentAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, a, ok := h.credentials(w, r)
		if !ok {
			return
		}

		hash := strings.TrimSpace(r.PostFormValue("hash"))
		if err := fn(r.Context(), creds, hash); err != nil {
			h.fail(w, r, err)
			return
		}

		a.session.Notify()
		h.logger.Debug("torrent action", "action", name, "hash", hash, "username", a.session.Username)
		h.record(r, name, a.session.Username, hash, "")

		if r.Header.Get("HX-Request") == "true" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Redirect(w, r, back(r), http.StatusSeeOther)
	}
}

// back returns the same-origin referring path, or the index.
func back(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	return ref.RequestURI()
}
