package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/forumlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// MembershipOpt mutates a membership record before insertion.
type MembershipOpt func(*models.MembershipRecord)

// WithNickname sets the record's nickname (and its folded shadow).
func WithNickname(nickname string) MembershipOpt {
	return func(rec *models.MembershipRecord) {
		ci := text.Fold(nickname)
		rec.Nickname = &nickname
		rec.NicknameCI = &ci
	}
}

// WithForumBinding sets the record's forum username and id.
func WithForumBinding(username, id string) MembershipOpt {
	return func(rec *models.MembershipRecord) {
		rec.ForumUsername = &username
		rec.ForumUserID = &id
	}
}

// WithLastCheckIn sets the record's last check-in timestamp.
func WithLastCheckIn(ts time.Time) MembershipOpt {
	return func(rec *models.MembershipRecord) {
		utc := ts.UTC()
		rec.LastCheckIn = &utc
	}
}

// CreateMembership inserts a membership record for (chatUserID, guildID) with
// the given options applied. Returns the inserted record.
func (f *Fixtures) CreateMembership(ctx context.Context, chatUserID, guildID string, opts ...MembershipOpt) models.MembershipRecord {
	f.t.Helper()

	now := time.Now().UTC()
	rec := models.MembershipRecord{
		ID:         primitive.NewObjectID(),
		ChatUserID: chatUserID,
		GuildID:    guildID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(&rec)
	}

	_, err := f.db.Collection("memberships").InsertOne(ctx, rec)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}

	return rec
}
