// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipRecord is the per-group identity state for one chat user.
// Exactly one document per (chat_user_id, guild_id); every mutation is a
// partial-merge upsert, so optional fields are pointers — nil means the
// member has never set the field, which is distinct from an empty string.
//
// NicknameCI is the case-folded shadow of Nickname and is maintained by the
// store whenever Nickname is written. Lookups by nickname go through it so a
// chat user typing "alice" finds "Alice".
type MembershipRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatUserID string             `bson:"chat_user_id" json:"chat_user_id"`
	GuildID    string             `bson:"guild_id" json:"guild_id"`

	Nickname   *string `bson:"nickname,omitempty" json:"nickname,omitempty"`
	NicknameCI *string `bson:"nickname_ci,omitempty" json:"-"`

	// Forum identity, set at bind time. ForumUserID is the opaque id the
	// forum resolves for ForumUsername; posting impersonates it when present.
	ForumUsername *string `bson:"forum_username,omitempty" json:"forum_username,omitempty"`
	ForumUserID   *string `bson:"forum_user_id,omitempty" json:"forum_user_id,omitempty"`

	LastCheckIn *time.Time `bson:"last_check_in,omitempty" json:"last_check_in,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
