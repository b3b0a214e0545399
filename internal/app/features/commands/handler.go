// Package commands is the chat-platform webhook surface. The chat framework
// parses each group command and delivers it here as a small JSON body; every
// endpoint answers with a single reply string for the framework to place back
// into the channel.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/forumlink/internal/app/flarum"
	"github.com/dalemusser/forumlink/internal/app/services/binding"
	"github.com/dalemusser/forumlink/internal/app/services/inactivity"
	"github.com/dalemusser/forumlink/internal/app/services/posting"
	"github.com/dalemusser/forumlink/internal/app/system/timeouts"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler holds the services behind the six chat commands.
type Handler struct {
	Binding    *binding.Service
	Inactivity *inactivity.Service
	Posting    *posting.Service
	Log        *zap.Logger
}

func NewHandler(b *binding.Service, i *inactivity.Service, p *posting.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Binding:    b,
		Inactivity: i,
		Posting:    p,
		Log:        logger,
	}
}

// commandRequest is the envelope every command body shares. Command-specific
// arguments ride alongside the identity pair.
type commandRequest struct {
	UserID  string `json:"user_id"`
	GuildID string `json:"guild_id"`

	Nickname      string `json:"nickname,omitempty"`
	ForumUsername string `json:"forum_username,omitempty"`
	Title         string `json:"title,omitempty"`
	Content       string `json:"content,omitempty"`
	Tag           string `json:"tag,omitempty"`
	Days          int    `json:"days,omitempty"`
}

type commandReply struct {
	Reply string `json:"reply"`
}

// decode reads the request body and checks the identity pair, and gives the
// invocation a correlation id for its log lines.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, command string) (commandRequest, *zap.Logger, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return commandRequest{}, nil, false
	}
	if req.UserID == "" || req.GuildID == "" {
		http.Error(w, "user_id and guild_id are required", http.StatusBadRequest)
		return commandRequest{}, nil, false
	}
	log := h.Log.With(
		zap.String("invocation_id", uuid.NewString()),
		zap.String("command", command),
		zap.String("guild_id", req.GuildID),
		zap.String("chat_user_id", req.UserID))
	return req, log, true
}

func (h *Handler) reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(commandReply{Reply: text})
}

// internalError hides fault detail from the channel while logging it in full.
func (h *Handler) internalError(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(commandReply{Reply: "Something went wrong. Please try again later."})
}

// Register handles POST /commands/register — store the member's nickname.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "register")
	if !ok {
		return
	}
	if req.Nickname == "" {
		http.Error(w, "nickname is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), log, "register member")
	defer cancel()

	if err := h.Binding.Register(ctx, req.UserID, req.GuildID, req.Nickname); err != nil {
		h.internalError(w, log, "register failed", err)
		return
	}
	h.reply(w, "Registered.")
}

// Bind handles POST /commands/bind — link the member to a forum account.
func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "bind")
	if !ok {
		return
	}
	if req.ForumUsername == "" {
		http.Error(w, "forum_username is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), log, "bind forum account")
	defer cancel()

	err := h.Binding.Bind(ctx, req.UserID, req.GuildID, req.ForumUsername)
	var notFound *binding.UserNotFoundError
	switch {
	case errors.As(err, &notFound):
		h.reply(w, fmt.Sprintf("No forum user named %q. Check the spelling and bind again.", notFound.Username))
	case err != nil:
		h.internalError(w, log, "bind failed", err)
	default:
		h.reply(w, "Bound.")
	}
}

// Status handles POST /commands/status — show a member's nickname and forum
// binding. A nickname in the body looks the member up by nickname instead of
// by the caller's chat id.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "status")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), log, "member status")
	defer cancel()

	st, err := h.Binding.Status(ctx, req.UserID, req.GuildID, req.Nickname)
	if err != nil {
		h.internalError(w, log, "status failed", err)
		return
	}
	if !st.Found {
		h.reply(w, "No record found.")
		return
	}
	h.reply(w, fmt.Sprintf("Nickname: %s · Forum: %s", orNone(st.Nickname), orNone(st.ForumUsername)))
}

// CheckIn handles POST /commands/checkin — record the member's check-in now.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "checkin")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), log, "record check-in")
	defer cancel()

	if err := h.Binding.CheckIn(ctx, req.UserID, req.GuildID); err != nil {
		h.internalError(w, log, "check-in failed", err)
		return
	}
	h.reply(w, "Check-in recorded.")
}

// Inactive handles POST /commands/inactive — list members who have not
// checked in within the window.
func (h *Handler) Inactive(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "inactive")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), log, "inactivity report")
	defer cancel()

	entries, err := h.Inactivity.Report(ctx, req.GuildID, req.Days)
	if err != nil {
		h.internalError(w, log, "inactivity report failed", err)
		return
	}
	if len(entries) == 0 {
		h.reply(w, "Everyone has checked in. Nice work!")
		return
	}

	var b strings.Builder
	b.WriteString("Members without a recent check-in:")
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(orNone(e.Nickname))
		if e.LastCheckIn != nil {
			b.WriteString(" — last check-in ")
			b.WriteString(e.LastCheckIn.Format("2006-01-02"))
		} else {
			b.WriteString(" — never checked in")
		}
	}
	h.reply(w, b.String())
}

// Post handles POST /commands/post — create a forum discussion as the member
// (or the service account when the member has no binding).
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	req, log, ok := h.decode(w, r, "post")
	if !ok {
		return
	}
	if req.Title == "" || req.Content == "" {
		http.Error(w, "title and content are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), log, "create discussion")
	defer cancel()

	id, err := h.Posting.Post(ctx, req.UserID, req.GuildID, req.Title, req.Content, req.Tag)
	var tagErr *posting.TagResolutionError
	var apiErr *flarum.APIError
	switch {
	case errors.As(err, &tagErr):
		h.internalError(w, log, "tag resolution failed", err)
	case errors.As(err, &apiErr):
		h.reply(w, "The forum rejected the post: "+apiErr.Message)
	case err != nil:
		h.internalError(w, log, "post failed", err)
	default:
		h.reply(w, fmt.Sprintf("Posted. Discussion id %s.", id))
	}
}

// orNone renders an unset field distinctly from a real empty string.
func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
