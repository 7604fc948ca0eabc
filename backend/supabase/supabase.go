// Package supabase mirrors the state document to a Supabase table with one
// row per user.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
	"github.com/supabase-community/supabase-go"
)

// DefaultTable is the table holding one document per user.
const DefaultTable = "user_state"

// Config holds the connection settings for the remote store.
type Config struct {
	URL         string
	Key         string
	Table       string
	UserID      string
	AccessToken string
}

// Remote implements the sync bridge's remote store over a Supabase table
// with columns user_id and document.
type Remote struct {
	client *supabase.Client
	table  string
	userID string
}

type stateRow struct {
	UserID   string          `json:"user_id"`
	Document json.RawMessage `json:"document"`
}

// New connects to Supabase. The user id comes from cfg.UserID or, when empty,
// from the sub claim of cfg.AccessToken.
func New(cfg Config) (*Remote, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, errors.New("supabase url and key are required")
	}

	userID := cfg.UserID
	if userID == "" && cfg.AccessToken != "" {
		sub, err := UserIDFromToken(cfg.AccessToken)
		if err != nil {
			return nil, err
		}
		userID = sub
	}
	if userID == "" {
		return nil, errors.New("supabase user id is required (set sync.user_id or an access token)")
	}

	opts := &supabase.ClientOptions{}
	if cfg.AccessToken != "" {
		opts.Headers = map[string]string{
			"Authorization": "Bearer " + cfg.AccessToken,
		}
	}
	client, err := supabase.NewClient(cfg.URL, cfg.Key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	return &Remote{client: client, table: table, userID: userID}, nil
}

// UserIDFromToken returns the sub claim of a JWT without verifying its
// signature. The server verifies the token on every request.
func UserIDFromToken(token string) (string, error) {
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("invalid access token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid access token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub in access token")
	}
	return sub, nil
}

// UserID returns the user whose row this remote reads and writes.
func (r *Remote) UserID() string {
	return r.userID
}

// Pull returns the user's document, or nil when the row doesn't exist.
func (r *Remote) Pull(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, _, err := r.client.From(r.table).
		Select("user_id, document", "", false).
		Eq("user_id", r.userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", r.table, err)
	}
	return decodeRows(resp)
}

// Push upserts the user's document.
func (r *Remote) Push(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(doc) {
		return errors.New("refusing to push invalid JSON document")
	}
	row := []stateRow{{UserID: r.userID, Document: json.RawMessage(doc)}}
	_, _, err := r.client.From(r.table).
		Upsert(row, "user_id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", r.table, err)
	}
	return nil
}

func decodeRows(resp []byte) ([]byte, error) {
	var rows []stateRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	if len(rows) == 0 || len(rows[0].Document) == 0 || string(rows[0].Document) == "null" {
		return nil, nil
	}
	return rows[0].Document, nil
}
