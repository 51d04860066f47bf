package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/transportal/internal/models"
)

const sessionIDHeader = "X-Transmission-Session-Id"

// FakeTransmission is an in-process Transmission daemon speaking the RPC subset the proxy uses.
//
// It enforces basic auth and the session id handshake: requests without the current id get a 409
// carrying it.
type FakeTransmission struct {
	Server *httptest.Server

	// Version is returned by session-get.
	Version string

	// Hook, when set, runs before every authenticated request is answered.
	Hook func(method string)

	username string
	password string

	mu       sync.Mutex
	token    int
	torrents []models.Torrent
	calls    map[string]int
	requests int
	status   int
	result   string
}

// NewFakeTransmission starts a fake daemon accepting username/password. It is closed with the test.
func NewFakeTransmission(t *testing.T, username, password string) *FakeTransmission {
	t.Helper()

	f := &FakeTransmission{
		Version:  "4.0.6 (38c164933e)",
		username: username,
		password: password,
		token:    1,
		calls:    map[string]int{},
		result:   "success",
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the RPC endpoint.
func (f *FakeTransmission) URL() string {
	return f.Server.URL + "/transmission/rpc"
}

// Token returns the session id the fake currently accepts.
func (f *FakeTransmission) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenLocked()
}

func (f *FakeTransmission) tokenLocked() string {
	return fmt.Sprintf("fake-session-%d", f.token)
}

// RotateToken invalidates the current session id, as a daemon restart would.
func (f *FakeTransmission) RotateToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token++
}

// SetTorrents replaces the daemon's torrent list.
func (f *FakeTransmission) SetTorrents(ts ...models.Torrent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents = append([]models.Torrent(nil), ts...)
}

// Torrents returns a copy of the daemon's torrent list.
func (f *FakeTransmission) Torrents() []models.Torrent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Torrent(nil), f.torrents...)
}

// FailWith makes every authenticated request answer with status. Zero restores normal behavior.
func (f *FakeTransmission) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// SetResult changes the RPC result string returned with a 200 status.
func (f *FakeTransmission) SetResult(result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

// Calls returns how many times method was answered after passing auth and the handshake.
func (f *FakeTransmission) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Requests returns the number of HTTP requests received, including rejected ones.
func (f *FakeTransmission) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeRequest struct {
	Method    string `json:"method"`
	Arguments struct {
		IDs      []string `json:"ids"`
		Filename string   `json:"filename"`
		Paused   bool     `json:"paused"`
	} `json:"arguments"`
	Tag uint64 `json:"tag"`
}

func (f *FakeTransmission) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	token := f.tokenLocked()
	f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != f.username || pass != f.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.Header.Get(sessionIDHeader) != token {
		w.Header().Set(sessionIDHeader, token)
		w.WriteHeader(http.StatusConflict)
		return
	}

	var req fakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if f.Hook != nil {
		f.Hook(req.Method)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[req.Method]++
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	args, err := f.dispatch(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(sessionIDHeader, token)
	json.NewEncoder(w).Encode(map[string]any{"result": f.result, "arguments": args, "tag": req.Tag})
}

func (f *FakeTransmission) dispatch(req fakeRequest) (any, error) {
	switch req.Method {
	case "session-get":
		return map[string]any{"version": f.Version, "rpc-version": 18}, nil
	case "torrent-get":
		return map[string]any{"torrents": f.find(req.Arguments.IDs)}, nil
	case "torrent-start":
		f.update(req.Arguments.IDs, func(t *models.Torrent) {
			t.Status = models.StatusDownloading
			if t.PercentDone >= 1 {
				t.Status = models.StatusSeeding
			}
		})
		return map[string]any{}, nil
	case "torrent-stop":
		f.update(req.Arguments.IDs, func(t *models.Torrent) { t.Status = models.StatusStopped })
		return map[string]any{}, nil
	case "torrent-verify":
		f.update(req.Arguments.IDs, func(t *models.Torrent) { t.Status = models.StatusCheckWait })
		return map[string]any{}, nil
	case "torrent-add":
		return f.add(req.Arguments.Filename, req.Arguments.Paused)
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}
}

func (f *FakeTransmission) find(ids []string) []models.Torrent {
	if len(ids) == 0 {
		return append([]models.Torrent{}, f.torrents...)
	}

	out := []models.Torrent{}
	for _, t := range f.torrents {
		for _, id := range ids {
			if strings.EqualFold(t.HashString, id) {
				out = append(out, t)
			}
		}
	}
	return out
}

func (f *FakeTransmission) update(ids []string, fn func(*models.Torrent)) {
	for i := range f.torrents {
		for _, id := range ids {
			if strings.EqualFold(f.torrents[i].HashString, id) {
				fn(&f.torrents[i])
			}
		}
	}
}

func (f *FakeTransmission) add(magnet string, paused bool) (any, error) {
	u, err := url.Parse(magnet)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	hash := strings.ToLower(strings.TrimPrefix(q.Get("xt"), "urn:btih:"))
	if hash == "" {
		return nil, fmt.Errorf("magnet without info hash")
	}

	for _, t := range f.torrents {
		if t.HashString == hash {
			return map[string]any{"torrent-duplicate": map[string]any{"id": t.ID, "hashString": t.HashString, "name": t.Name}}, nil
		}
	}

	name := q.Get("dn")
	if name == "" {
		name = hash
	}

	t := models.Torrent{ID: len(f.torrents) + 1, HashString: hash, Name: name, Status: models.StatusDownloadWait, Eta: -1}
	if paused {
		t.Status = models.StatusStopped
	}
	f.torrents = append(f.torrents, t)

	return map[string]any{"torrent-added": map[string]any{"id": t.ID, "hashString": t.HashString, "name": t.Name}}, nil
}
