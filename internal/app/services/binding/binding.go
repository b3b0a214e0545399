// Package binding implements nickname registration, forum-account binding,
// check-in recording, and member status lookup over the membership store.
package binding

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/forumlink/internal/app/flarum"
	membershipstore "github.com/dalemusser/forumlink/internal/app/store/memberships"
	"github.com/dalemusser/forumlink/internal/domain/models"
	"go.uber.org/zap"
)

// MembershipStore is the slice of the store this service needs.
type MembershipStore interface {
	Upsert(ctx context.Context, p membershipstore.Partial) error
	Query(ctx context.Context, f membershipstore.Filter) ([]models.MembershipRecord, error)
	Get(ctx context.Context, chatUserID, guildID string) (models.MembershipRecord, bool, error)
}

// UserSearcher is the slice of the forum client this service needs.
type UserSearcher interface {
	SearchUsers(ctx context.Context, query string) ([]flarum.User, error)
}

// UserNotFoundError reports a bind against a forum username the forum's user
// directory does not contain. No record is mutated when it is returned.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("no forum user named %q", e.Username)
}

type Service struct {
	store MembershipStore
	forum UserSearcher
	now   func() time.Time
	log   *zap.Logger
}

func New(store MembershipStore, forum UserSearcher, logger *zap.Logger) *Service {
	return &Service{
		store: store,
		forum: forum,
		now:   time.Now,
		log:   logger,
	}
}

// WithClock overrides the service's clock. Tests use it to pin check-in
// timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register stores the member's chosen nickname. Repeated calls overwrite the
// previous nickname; no history is kept.
func (s *Service) Register(ctx context.Context, chatUserID, guildID, nickname string) error {
	return s.store.Upsert(ctx, membershipstore.Partial{
		ChatUserID: chatUserID,
		GuildID:    guildID,
		Nickname:   &nickname,
	})
}

// Bind validates forumUsername against the forum's user directory and, when it
// exists, stores the username and the resolved forum user id. The search
// endpoint matches substrings, so results are filtered for exact equality; an
// empty filtered set returns *UserNotFoundError with nothing written.
func (s *Service) Bind(ctx context.Context, chatUserID, guildID, forumUsername string) error {
	users, err := s.forum.SearchUsers(ctx, forumUsername)
	if err != nil {
		return err
	}

	var match *flarum.User
	for i := range users {
		if users[i].Username == forumUsername {
			match = &users[i]
			break
		}
	}
	if match == nil {
		return &UserNotFoundError{Username: forumUsername}
	}

	s.log.Info("binding forum account",
		zap.String("chat_user_id", chatUserID),
		zap.String("guild_id", guildID),
		zap.String("forum_username", match.Username),
		zap.String("forum_user_id", match.ID))

	return s.store.Upsert(ctx, membershipstore.Partial{
		ChatUserID:    chatUserID,
		GuildID:       guildID,
		ForumUsername: &forumUsername,
		ForumUserID:   &match.ID,
	})
}

// CheckIn records the current instant as the member's last check-in. Repeat
// calls keep moving the timestamp forward; a same-day check-in is not
// suppressed.
func (s *Service) CheckIn(ctx context.Context, chatUserID, guildID string) error {
	now := s.now().UTC()
	return s.store.Upsert(ctx, membershipstore.Partial{
		ChatUserID:  chatUserID,
		GuildID:     guildID,
		LastCheckIn: &now,
	})
}

// Status is a member's binding state as rendered by the status command.
// Unset fields come back as empty strings; Found is false when the member has
// no record at all.
type Status struct {
	Nickname      string
	ForumUsername string
	Found         bool
}

// Status looks up a member's nickname and forum binding. When nicknameLookup
// is non-empty the member is resolved by nickname within the guild (folded,
// case-insensitive) instead of by chat user id.
func (s *Service) Status(ctx context.Context, chatUserID, guildID, nicknameLookup string) (Status, error) {
	var rec models.MembershipRecord
	if nicknameLookup != "" {
		records, err := s.store.Query(ctx, membershipstore.Filter{
			GuildID:  guildID,
			Nickname: nicknameLookup,
		})
		if err != nil {
			return Status{}, err
		}
		if len(records) == 0 {
			return Status{}, nil
		}
		rec = records[0]
	} else {
		found := false
		var err error
		rec, found, err = s.store.Get(ctx, chatUserID, guildID)
		if err != nil {
			return Status{}, err
		}
		if !found {
			return Status{}, nil
		}
	}

	st := Status{Found: true}
	if rec.Nickname != nil {
		st.Nickname = *rec.Nickname
	}
	if rec.ForumUsername != nil {
		st.ForumUsername = *rec.ForumUsername
	}
	return st, nil
}
