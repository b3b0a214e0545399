// Package flarum is a thin authenticated client for the three forum endpoints
// this service uses: user search, tag listing, and discussion creation.
//
// The forum speaks JSON:API; responses decode into the typed structures here
// and anything undecodable surfaces as a *DecodeError rather than flowing on
// as half-shaped data.
package flarum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the forum connection settings, fixed at startup.
type Config struct {
	BaseURL       string // e.g. https://forum.example.com (no trailing slash needed)
	APIToken      string // shared master API token
	ServiceUserID string // forum user id the service posts as when no personal binding exists
}

// Identity selects the authentication context for a forum call. A non-empty
// ForumUserID impersonates that user via the token's userId clause; the zero
// value acts as the bare service token.
type Identity struct {
	ForumUserID string
}

// User is a forum account as returned by user search.
type User struct {
	ID       string
	Username string
}

// Tag is a forum category; Slug is the human-facing key, ID the opaque
// identifier discussions reference.
type Tag struct {
	ID   string
	Slug string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger,
	}
}

// ServiceUserID exposes the configured service-account id for identity
// resolution in the posting workflow.
func (c *Client) ServiceUserID() string { return c.cfg.ServiceUserID }

// jsonapiResource is the common {id, attributes} element of forum payloads.
type jsonapiResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Username string `json:"username"`
		Slug     string `json:"slug"`
	} `json:"attributes"`
}

// SearchUsers performs the forum's substring user search. The result set is
// NOT exact-match; callers must post-filter on Username.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var resp struct {
		Data []jsonapiResource `json:"data"`
	}
	q := url.Values{}
	q.Set("filter[q]", query)
	if err := c.do(ctx, http.MethodGet, "/api/users", q, nil, Identity{ForumUserID: c.cfg.ServiceUserID}, &resp); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(resp.Data))
	for _, d := range resp.Data {
		users = append(users, User{ID: d.ID, Username: d.Attributes.Username})
	}
	return users, nil
}

// ListTags fetches the forum's full tag set.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var resp struct {
		Data []jsonapiResource `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, nil, Identity{}, &resp); err != nil {
		return nil, err
	}
	tags := make([]Tag, 0, len(resp.Data))
	for _, d := range resp.Data {
		tags = append(tags, Tag{ID: d.ID, Slug: d.Attributes.Slug})
	}
	return tags, nil
}

// CreateDiscussion opens a new discussion under the given tag, acting as the
// supplied identity. Returns the forum's id for the created discussion.
func (c *Client) CreateDiscussion(ctx context.Context, title, content, tagID string, identity Identity) (string, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "discussions",
			"attributes": map[string]any{
				"title":   title,
				"content": content,
			},
			"relationships": map[string]any{
				"tags": map[string]any{
					"data": []map[string]any{
						{"type": "tags", "id": tagID},
					},
				},
			},
		},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/discussions", nil, body, identity, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// authorization builds the Flarum master-token header. The userId clause is
// omitted when the identity is empty so the call falls back to the bare
// service token.
func (c *Client) authorization(identity Identity) string {
	if identity.ForumUserID == "" {
		return "Token " + c.cfg.APIToken
	}
	return "Token " + c.cfg.APIToken + ";userId=" + identity.ForumUserID
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, identity Identity, out any) error {
	u, err := url.Parse(strings.TrimSpace(c.cfg.BaseURL))
	if err != nil {
		return fmt.Errorf("parse forum base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authorization(identity))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		c.log.Warn("forum call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// errorMessage extracts Flarum's error detail from a failure payload, falling
// back to a trimmed body excerpt when the payload is not the expected shape.
func errorMessage(raw []byte) string {
	var payload struct {
		Errors []struct {
			Status string `json:"status"`
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		parts := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			switch {
			case e.Detail != "":
				parts = append(parts, e.Detail)
			case e.Code != "":
				parts = append(parts, e.Code)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	excerpt := strings.TrimSpace(string(raw))
	if len(excerpt) > 512 {
		excerpt = excerpt[:512]
	}
	return excerpt
}
