package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ForumUser seeds the fake forum's user directory.
type ForumUser struct {
	ID       string
	Username string
}

// FakeForum is an httptest stand-in for the forum's JSON API: substring user
// search, tag listing, and discussion creation. It records the Authorization
// header of each request so tests can assert identity selection.
type FakeForum struct {
	Server *httptest.Server

	mu sync.Mutex
	// Users returned by /api/users regardless of query (the real endpoint is
	// substring search; tests seed supersets to exercise exact-match filters).
	Users []ForumUser
	// Tags maps slug -> id for /api/tags.
	Tags map[string]string
	// NextDiscussionID is returned by /api/discussions.
	NextDiscussionID string
	// AuthHeaders collects the Authorization header of every request, in order.
	AuthHeaders []string
	// Discussions collects the decoded bodies of every create call.
	Discussions []map[string]any
}

// NewFakeForum starts the fake forum; it is closed when the test finishes.
func NewFakeForum(t *testing.T) *FakeForum {
	t.Helper()
	f := &FakeForum{
		Tags:             map[string]string{},
		NextDiscussionID: "1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		data := []map[string]any{}
		for _, u := range f.snapshotUsers() {
			data = append(data, map[string]any{
				"id":         u.ID,
				"attributes": map[string]any{"username": u.Username},
			})
		}
		writeJSON(w, map[string]any{"data": data})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		data := []map[string]any{}
		f.mu.Lock()
		for slug, id := range f.Tags {
			data = append(data, map[string]any{
				"id":         id,
				"attributes": map[string]any{"slug": slug},
			})
		}
		f.mu.Unlock()
		writeJSON(w, map[string]any{"data": data})
	})
	mux.HandleFunc("/api/discussions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.Discussions = append(f.Discussions, body)
		id := f.NextDiscussionID
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"data": map[string]any{"id": id}})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the fake forum's base URL for flarum.Config.
func (f *FakeForum) BaseURL() string { return f.Server.URL }

// LastAuthHeader returns the Authorization header of the most recent request.
func (f *FakeForum) LastAuthHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.AuthHeaders) == 0 {
		return ""
	}
	return f.AuthHeaders[len(f.AuthHeaders)-1]
}

func (f *FakeForum) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthHeaders = append(f.AuthHeaders, r.Header.Get("Authorization"))
}

func (f *FakeForum) snapshotUsers() []ForumUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ForumUser, len(f.Users))
	copy(out, f.Users)
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
