package binding_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/forumlink/internal/app/flarum"
	"github.com/dalemusser/forumlink/internal/app/services/binding"
	"github.com/dalemusser/forumlink/internal/testutil"
	"go.uber.org/zap"
)

type fakeSearcher struct {
	users []flarum.User
	err   error
}

func (f *fakeSearcher) SearchUsers(ctx context.Context, query string) ([]flarum.User, error) {
	return f.users, f.err
}

func TestRegisterThenBindThenCheckIn_Merges(t *testing.T) {
	store := testutil.NewMemStore()
	forum := &fakeSearcher{users: []flarum.User{{ID: "42", Username: "alice_forum"}}}
	svc := binding.New(store, forum, zap.NewNop())
	ctx := context.Background()

	if err := svc.Register(ctx, "u1", "g1", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := svc.Bind(ctx, "u1", "g1", "alice_forum"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := svc.CheckIn(ctx, "u1", "g1"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	rec, found, err := store.Get(ctx, "u1", "g1")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if rec.Nickname == nil || *rec.Nickname != "Alice" {
		t.Errorf("Nickname: got %v, want Alice", rec.Nickname)
	}
	if rec.ForumUsername == nil || *rec.ForumUsername != "alice_forum" {
		t.Errorf("ForumUsername: got %v, want alice_forum", rec.ForumUsername)
	}
	if rec.ForumUserID == nil || *rec.ForumUserID != "42" {
		t.Errorf("ForumUserID: got %v, want 42", rec.ForumUserID)
	}
	if rec.LastCheckIn == nil {
		t.Error("LastCheckIn not set")
	}
}

func TestBind_UnknownUsername_NoMutation(t *testing.T) {
	store := testutil.NewMemStore()
	forum := &fakeSearcher{users: nil}
	svc := binding.New(store, forum, zap.NewNop())
	ctx := context.Background()

	if err := svc.Register(ctx, "u1", "g1", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := svc.Bind(ctx, "u1", "g1", "nobody")
	var notFound *binding.UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *UserNotFoundError, got %v", err)
	}
	if notFound.Username != "nobody" {
		t.Errorf("error names %q, want nobody", notFound.Username)
	}

	rec, _, err := store.Get(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.ForumUsername != nil || rec.ForumUserID != nil {
		t.Errorf("record mutated on failed bind: %+v", rec)
	}
}

func TestBind_FiltersSubstringMatches(t *testing.T) {
	store := testutil.NewMemStore()
	// substring search returns near-misses before the exact hit
	forum := &fakeSearcher{users: []flarum.User{
		{ID: "41", Username: "alice_forum_backup"},
		{ID: "42", Username: "alice_forum"},
	}}
	svc := binding.New(store, forum, zap.NewNop())
	ctx := context.Background()

	if err := svc.Bind(ctx, "u1", "g1", "alice_forum"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	rec, _, _ := store.Get(ctx, "u1", "g1")
	if rec.ForumUserID == nil || *rec.ForumUserID != "42" {
		t.Errorf("ForumUserID: got %v, want 42 (exact match, not substring hit)", rec.ForumUserID)
	}
}

func TestBind_ForumErrorPropagates(t *testing.T) {
	store := testutil.NewMemStore()
	wantErr := &flarum.APIError{StatusCode: 500, Message: "boom"}
	forum := &fakeSearcher{err: wantErr}
	svc := binding.New(store, forum, zap.NewNop())

	err := svc.Bind(context.Background(), "u1", "g1", "alice_forum")
	var apiErr *flarum.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *flarum.APIError, got %v", err)
	}
}

func TestCheckIn_UsesClock(t *testing.T) {
	store := testutil.NewMemStore()
	svc := binding.New(store, &fakeSearcher{}, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	if err := svc.CheckIn(ctx, "u1", "g1"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	rec, _, _ := store.Get(ctx, "u1", "g1")
	if rec.LastCheckIn == nil || !rec.LastCheckIn.Equal(fixed) {
		t.Errorf("LastCheckIn: got %v, want %v", rec.LastCheckIn, fixed)
	}
}

func TestStatus_ByChatUser(t *testing.T) {
	store := testutil.NewMemStore()
	svc := binding.New(store, &fakeSearcher{}, zap.NewNop())
	ctx := context.Background()

	if err := svc.Register(ctx, "u1", "g1", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	st, err := svc.Status(ctx, "u1", "g1", "")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Found {
		t.Fatal("expected Found")
	}
	if st.Nickname != "Alice" || st.ForumUsername != "" {
		t.Errorf("status: got %+v", st)
	}
}

func TestStatus_ByNickname_CaseInsensitive(t *testing.T) {
	store := testutil.NewMemStore()
	svc := binding.New(store, &fakeSearcher{}, zap.NewNop())
	ctx := context.Background()

	if err := svc.Register(ctx, "u1", "g1", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	st, err := svc.Status(ctx, "someone-else", "g1", "alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Found || st.Nickname != "Alice" {
		t.Errorf("status by nickname: got %+v", st)
	}

	// nickname lookup is scoped to the guild
	st, err = svc.Status(ctx, "someone-else", "g2", "alice")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Found {
		t.Error("nickname lookup leaked across guilds")
	}
}

func TestStatus_NoRecord(t *testing.T) {
	store := testutil.NewMemStore()
	svc := binding.New(store, &fakeSearcher{}, zap.NewNop())

	st, err := svc.Status(context.Background(), "ghost", "g1", "")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Found {
		t.Error("expected Found=false for missing record")
	}
}
