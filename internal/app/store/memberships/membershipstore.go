// internal/app/store/memberships/membershipstore.go
package membershipstore

// Terminology: Member Identifiers
//   - ChatUserID / chat_user_id: the chat platform's id for a user (unique per guild, not globally)
//   - ForumUserID / forum_user_id: the discussion forum's opaque id, resolved at bind time

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/forumlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("memberships")}
}

var errMissingKey = errors.New("upsert requires chat_user_id and guild_id")

// Partial is a partial-merge write against one membership record. ChatUserID
// and GuildID identify the record; every other field is merged only when
// non-nil, so an absent field never clears a previously stored value.
type Partial struct {
	ChatUserID string
	GuildID    string

	Nickname      *string
	ForumUsername *string
	ForumUserID   *string
	LastCheckIn   *time.Time
}

// Upsert merges the supplied fields into the record for (ChatUserID, GuildID),
// creating the record if it does not exist. The unique compound index on the
// key pair makes concurrent upserts last-write-wins on a single document; a
// lost insert race surfaces as a duplicate-key error and is retried once as
// a plain update.
func (s *Store) Upsert(ctx context.Context, p Partial) error {
	if p.ChatUserID == "" || p.GuildID == "" {
		return errMissingKey
	}

	now := time.Now().UTC()
	set := bson.M{"updated_at": now}
	if p.Nickname != nil {
		set["nickname"] = *p.Nickname
		set["nickname_ci"] = text.Fold(*p.Nickname)
	}
	if p.ForumUsername != nil {
		set["forum_username"] = *p.ForumUsername
	}
	if p.ForumUserID != nil {
		set["forum_user_id"] = *p.ForumUserID
	}
	if p.LastCheckIn != nil {
		set["last_check_in"] = p.LastCheckIn.UTC()
	}

	filter := bson.M{"chat_user_id": p.ChatUserID, "guild_id": p.GuildID}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"chat_user_id": p.ChatUserID,
			"guild_id":     p.GuildID,
			"created_at":   now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, filter, update, opts)
	if wafflemongo.IsDup(err) {
		// Two concurrent upserts raced on the insert path; the document now
		// exists, so a non-upserting update settles it.
		_, err = s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	}
	return err
}

// Filter selects membership records; zero-value fields are unconstrained.
// Nickname matches case-insensitively against the folded shadow field.
type Filter struct {
	ChatUserID string
	GuildID    string
	Nickname   string
}

// Query returns all records matching the filter, ordered by _id ascending so
// repeated calls over the same data produce the same sequence. An empty
// result is a nil-length slice, not an error.
func (s *Store) Query(ctx context.Context, f Filter) ([]models.MembershipRecord, error) {
	filter := bson.M{}
	if f.ChatUserID != "" {
		filter["chat_user_id"] = f.ChatUserID
	}
	if f.GuildID != "" {
		filter["guild_id"] = f.GuildID
	}
	if f.Nickname != "" {
		filter["nickname_ci"] = text.Fold(f.Nickname)
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.MembershipRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get loads the single record for (chatUserID, guildID). The second return
// is false when the member has no record yet.
func (s *Store) Get(ctx context.Context, chatUserID, guildID string) (models.MembershipRecord, bool, error) {
	var rec models.MembershipRecord
	err := s.c.FindOne(ctx, bson.M{"chat_user_id": chatUserID, "guild_id": guildID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return models.MembershipRecord{}, false, nil
	}
	if err != nil {
		return models.MembershipRecord{}, false, err
	}
	return rec, true, nil
}
