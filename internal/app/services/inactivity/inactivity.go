// Package inactivity computes which guild members have not checked in within
// a day window.
package inactivity

import (
	"context"
	"time"

	membershipstore "github.com/dalemusser/forumlink/internal/app/store/memberships"
	"github.com/dalemusser/forumlink/internal/domain/models"
	"go.uber.org/zap"
)

type MembershipStore interface {
	Query(ctx context.Context, f membershipstore.Filter) ([]models.MembershipRecord, error)
}

// Entry is one inactive member. LastCheckIn is nil for members who have never
// checked in; renderers show that distinctly from an old timestamp.
type Entry struct {
	Nickname    string
	LastCheckIn *time.Time
}

type Service struct {
	store       MembershipStore
	defaultDays int
	now         func() time.Time
	log         *zap.Logger
}

func New(store MembershipStore, defaultDays int, logger *zap.Logger) *Service {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &Service{
		store:       store,
		defaultDays: defaultDays,
		now:         time.Now,
		log:         logger,
	}
}

// WithClock overrides the service's clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Report returns the guild's members whose last check-in is older than the
// cutoff (now minus days) or who have never checked in, in the store's stable
// iteration order. days <= 0 means the configured default window. An empty
// result means everyone is active and is a success, not an error.
func (s *Service) Report(ctx context.Context, guildID string, days int) ([]Entry, error) {
	if days <= 0 {
		days = s.defaultDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	records, err := s.store.Query(ctx, membershipstore.Filter{GuildID: guildID})
	if err != nil {
		return nil, err
	}

	var inactive []Entry
	for _, rec := range records {
		if rec.LastCheckIn != nil && !rec.LastCheckIn.Before(cutoff) {
			continue
		}
		entry := Entry{LastCheckIn: rec.LastCheckIn}
		if rec.Nickname != nil {
			entry.Nickname = *rec.Nickname
		}
		inactive = append(inactive, entry)
	}

	s.log.Debug("inactivity report computed",
		zap.String("guild_id", guildID),
		zap.Int("days", days),
		zap.Int("members", len(records)),
		zap.Int("inactive", len(inactive)))

	return inactive, nil
}
