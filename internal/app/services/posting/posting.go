// Package posting creates forum discussions on behalf of chat members,
// resolving the acting forum identity and the target tag before the call.
package posting

import (
	"context"
	"fmt"

	"github.com/dalemusser/forumlink/internal/app/flarum"
	"github.com/dalemusser/forumlink/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// DefaultTagSlug is the tag every post falls back to when no slug is given or
// the requested slug is unknown. The forum is expected to define it; a forum
// without it is a configuration fault, not a posting fault.
const DefaultTagSlug = "auto"

type MembershipStore interface {
	Get(ctx context.Context, chatUserID, guildID string) (models.MembershipRecord, bool, error)
}

// ForumPoster is the slice of the forum client this workflow needs.
type ForumPoster interface {
	ListTags(ctx context.Context) ([]flarum.Tag, error)
	CreateDiscussion(ctx context.Context, title, content, tagID string, identity flarum.Identity) (string, error)
	ServiceUserID() string
}

// TagResolutionError reports that neither the requested slug nor the default
// slug exists in the forum's tag set. It must never be folded into a
// successful post.
type TagResolutionError struct {
	Slug string
}

func (e *TagResolutionError) Error() string {
	return fmt.Sprintf("tag %q is not defined on the forum (nor is the %q fallback)", e.Slug, DefaultTagSlug)
}

type Service struct {
	store     MembershipStore
	forum     ForumPoster
	sanitizer *bluemonday.Policy
	log       *zap.Logger
}

func New(store MembershipStore, forum ForumPoster, logger *zap.Logger) *Service {
	return &Service{
		store: store,
		forum: forum,
		// Strict policy: titles and bodies are chat text; any markup a user
		// smuggled in is stripped before it reaches the forum.
		sanitizer: bluemonday.StrictPolicy(),
		log:       logger,
	}
}

// Post creates a discussion titled title with body content under tagSlug
// (or the default tag) and returns the new discussion's id.
func (s *Service) Post(ctx context.Context, chatUserID, guildID, title, content, tagSlug string) (string, error) {
	title = s.sanitizer.Sanitize(title)
	content = s.sanitizer.Sanitize(content)

	identity, err := s.resolveActingIdentity(ctx, chatUserID, guildID)
	if err != nil {
		return "", err
	}

	tagID, err := s.resolveTag(ctx, tagSlug)
	if err != nil {
		return "", err
	}

	s.log.Info("creating discussion",
		zap.String("chat_user_id", chatUserID),
		zap.String("guild_id", guildID),
		zap.String("tag_id", tagID),
		zap.Bool("personal_identity", identity.ForumUserID != s.forum.ServiceUserID()))

	return s.forum.CreateDiscussion(ctx, title, content, tagID, identity)
}

// resolveActingIdentity picks the forum identity a post is made under. The
// strategies run in order; the first that resolves wins:
//  1. the member's record exists and carries a bound forum user id — post as
//     that user
//  2. otherwise — post as the configured service account
func (s *Service) resolveActingIdentity(ctx context.Context, chatUserID, guildID string) (flarum.Identity, error) {
	rec, found, err := s.store.Get(ctx, chatUserID, guildID)
	if err != nil {
		return flarum.Identity{}, err
	}
	if found && rec.ForumUserID != nil && *rec.ForumUserID != "" {
		return flarum.Identity{ForumUserID: *rec.ForumUserID}, nil
	}
	return flarum.Identity{ForumUserID: s.forum.ServiceUserID()}, nil
}

// resolveTag maps a requested slug to a tag id. The strategies run in order:
//  1. the requested slug, when given and present in the forum's tag set
//  2. the default slug
//  3. neither present — *TagResolutionError
func (s *Service) resolveTag(ctx context.Context, tagSlug string) (string, error) {
	tags, err := s.forum.ListTags(ctx)
	if err != nil {
		return "", err
	}
	bySlug := make(map[string]string, len(tags))
	for _, t := range tags {
		bySlug[t.Slug] = t.ID
	}

	if tagSlug != "" {
		if id, ok := bySlug[tagSlug]; ok {
			return id, nil
		}
	}
	if id, ok := bySlug[DefaultTagSlug]; ok {
		return id, nil
	}

	slug := tagSlug
	if slug == "" {
		slug = DefaultTagSlug
	}
	return "", &TagResolutionError{Slug: slug}
}
