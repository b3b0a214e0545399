package testutil

import (
	"context"
	"sync"
	"time"

	membershipstore "github.com/dalemusser/forumlink/internal/app/store/memberships"
	"github.com/dalemusser/forumlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore is an in-memory MembershipStore with the same merge-upsert and
// filtered-query semantics as the Mongo-backed store. Service and handler
// tests use it so they run without a database.
type MemStore struct {
	mu      sync.Mutex
	records []models.MembershipRecord
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Upsert(ctx context.Context, p membershipstore.Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	idx := -1
	for i := range m.records {
		if m.records[i].ChatUserID == p.ChatUserID && m.records[i].GuildID == p.GuildID {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.records = append(m.records, models.MembershipRecord{
			ID:         primitive.NewObjectID(),
			ChatUserID: p.ChatUserID,
			GuildID:    p.GuildID,
			CreatedAt:  now,
		})
		idx = len(m.records) - 1
	}

	rec := &m.records[idx]
	rec.UpdatedAt = now
	if p.Nickname != nil {
		n := *p.Nickname
		ci := text.Fold(n)
		rec.Nickname = &n
		rec.NicknameCI = &ci
	}
	if p.ForumUsername != nil {
		v := *p.ForumUsername
		rec.ForumUsername = &v
	}
	if p.ForumUserID != nil {
		v := *p.ForumUserID
		rec.ForumUserID = &v
	}
	if p.LastCheckIn != nil {
		v := p.LastCheckIn.UTC()
		rec.LastCheckIn = &v
	}
	return nil
}

func (m *MemStore) Query(ctx context.Context, f membershipstore.Filter) ([]models.MembershipRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.MembershipRecord
	for _, rec := range m.records {
		if f.ChatUserID != "" && rec.ChatUserID != f.ChatUserID {
			continue
		}
		if f.GuildID != "" && rec.GuildID != f.GuildID {
			continue
		}
		if f.Nickname != "" {
			if rec.NicknameCI == nil || *rec.NicknameCI != text.Fold(f.Nickname) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemStore) Get(ctx context.Context, chatUserID, guildID string) (models.MembershipRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ChatUserID == chatUserID && rec.GuildID == guildID {
			return rec, true, nil
		}
	}
	return models.MembershipRecord{}, false, nil
}
