package commands_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/forumlink/internal/app/features/commands"
	"github.com/dalemusser/forumlink/internal/app/flarum"
	"github.com/dalemusser/forumlink/internal/app/services/binding"
	"github.com/dalemusser/forumlink/internal/app/services/inactivity"
	"github.com/dalemusser/forumlink/internal/app/services/posting"
	"github.com/dalemusser/forumlink/internal/testutil"
	"go.uber.org/zap"
)

// newRouter wires the command surface with an in-memory store and the fake
// forum, mirroring bootstrap.BuildHandler.
func newRouter(t *testing.T, forum *testutil.FakeForum, webhookToken string) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	store := testutil.NewMemStore()

	client := flarum.NewClient(flarum.Config{
		BaseURL:       forum.BaseURL(),
		APIToken:      "secret-token",
		ServiceUserID: "7",
	}, logger)

	h := commands.NewHandler(
		binding.New(store, client, logger),
		inactivity.New(store, 30, logger),
		posting.New(store, client, logger),
		logger,
	)
	return commands.Routes(h, webhookToken)
}

func post(t *testing.T, handler http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(string(encoded)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func replyOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse reply: %v (body %q)", err, rec.Body.String())
	}
	return resp.Reply
}

func TestRegisterBindStatus_Scenario(t *testing.T) {
	forum := testutil.NewFakeForum(t)
	forum.Users = []testutil.ForumUser{{ID: "42", Username: "alice_forum"}}
	router := newRouter(t, forum, "")

	rec := post(t, router, "/register", map[string]any{
		"user_id": "u1", "guild_id": "g1", "nickname": "Alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d", rec.Code)
	}
	if got := replyOf(t, rec); got != "Registered." {
		t.Errorf("register reply: %q", got)
	}

	rec = post(t, router, "/bind", map[string]any{
		"user_id": "u1", "guild_id": "g1", "forum_username": "alice_forum",
	})
	if got := replyOf(t, rec); got != "Bound." {
		t.Errorf("bind reply: %q", got)
	}

	rec = post(t, router, "/status", map[string]any{
		"user_id": "u1", "guild_id": "g1",
	})
	want := "Nickname: Alice · Forum: alice_forum"
	if got := replyOf(t, rec); got != want {
		t.Errorf("status reply: got %q, want %q", got, want)
	}
}

func TestBind_UnknownUser_ReplyNamesUsername(t *testing.T) {
	forum := testutil.NewFakeForum(t)
	router := newRouter(t, forum, "")

	rec := post(t, router, "/bind", map[string]any{
		"user_id": "u1", "guild_id": "g1", "forum_username": "nobody",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bind: status %d", rec.Code)
	}
	if got := replyOf(t, rec); !strings.Contains(got, `"nobody"`) {
		t.Errorf("reply does not name the missing username: %q", got)
	}
}

func TestStatus_NoRecord(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	rec := post(t, router, "/status", map[string]any{
		"user_id": "ghost", "guild_id": "g1",
	})
	if got := replyOf(t, rec); got != "No record found." {
		t.Errorf("reply: %q", got)
	}
}

func TestStatus_UnsetFieldsRenderNone(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	// check-in creates a record with neither nickname nor binding
	post(t, router, "/checkin", map[string]any{"user_id": "u1", "guild_id": "g1"})

	rec := post(t, router, "/status", map[string]any{"user_id": "u1", "guild_id": "g1"})
	want := "Nickname: none · Forum: none"
	if got := replyOf(t, rec); got != want {
		t.Errorf("reply: got %q, want %q", got, want)
	}
}

func TestCheckIn(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	rec := post(t, router, "/checkin", map[string]any{"user_id": "u1", "guild_id": "g1"})
	if got := replyOf(t, rec); got != "Check-in recorded." {
		t.Errorf("reply: %q", got)
	}
}

func TestInactive_AllActive(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	post(t, router, "/checkin", map[string]any{"user_id": "u1", "guild_id": "g1"})

	rec := post(t, router, "/inactive", map[string]any{"user_id": "caller", "guild_id": "g1"})
	if got := replyOf(t, rec); got != "Everyone has checked in. Nice work!" {
		t.Errorf("reply: %q", got)
	}
}

func TestInactive_ListsNeverCheckedIn(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	post(t, router, "/register", map[string]any{
		"user_id": "u1", "guild_id": "g1", "nickname": "Alice",
	})

	rec := post(t, router, "/inactive", map[string]any{"user_id": "caller", "guild_id": "g1"})
	got := replyOf(t, rec)
	if !strings.Contains(got, "Alice") || !strings.Contains(got, "never checked in") {
		t.Errorf("reply: %q", got)
	}
}

func TestPost_CreatesDiscussion(t *testing.T) {
	forum := testutil.NewFakeForum(t)
	forum.Tags = map[string]string{"auto": "3"}
	forum.NextDiscussionID = "55"
	router := newRouter(t, forum, "")

	rec := post(t, router, "/post", map[string]any{
		"user_id": "u1", "guild_id": "g1",
		"title": "Weekly Update", "content": "All good.",
	})
	if got := replyOf(t, rec); got != "Posted. Discussion id 55." {
		t.Errorf("reply: %q", got)
	}
	// unbound caller posts as the bare service token with userId clause
	if got := forum.LastAuthHeader(); got != "Token secret-token;userId=7" {
		t.Errorf("Authorization: %q", got)
	}
}

func TestPost_MissingArgs(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	rec := post(t, router, "/post", map[string]any{
		"user_id": "u1", "guild_id": "g1", "title": "Only a title",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestMissingIdentity(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "")

	rec := post(t, router, "/register", map[string]any{"nickname": "Alice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestWebhookToken(t *testing.T) {
	router := newRouter(t, testutil.NewFakeForum(t), "hook-secret")

	// no token
	rec := post(t, router, "/checkin", map[string]any{"user_id": "u1", "guild_id": "g1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token: got %d, want 401", rec.Code)
	}

	// correct token
	body := `{"user_id":"u1","guild_id":"g1"}`
	req := httptest.NewRequest("POST", "/checkin", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer hook-secret")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("status with token: got %d, want 200", rec2.Code)
	}
}
