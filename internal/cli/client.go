package cli

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

	"clicker/internal/game"
	"clicker/internal/save"

	"github.com/google/uuid"
)

// APIError is a non-2xx response from the game API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type CreatedGame struct {
	ID    uuid.UUID     `json:"id"`
	State game.GameData `json:"state"`
}

func (c *Client) CreateGame(ctx context.Context) (CreatedGame, error) {
	var out CreatedGame
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", nil, &out)
	return out, err
}

func (c *Client) ListGames(ctx context.Context) ([]save.Meta, error) {
	var out struct {
		Games []save.Meta `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", nil, &out)
	return out.Games, err
}

func (c *Client) Game(ctx context.Context, id uuid.UUID) (game.GameData, error) {
	var out game.GameData
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(id, ""), nil, &out)
	return out, err
}

func (c *Client) Upgrades(ctx context.Context, id uuid.UUID) ([]game.UpgradeView, error) {
	var out struct {
		Upgrades []game.UpgradeView `json:"upgrades"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(id, "/upgrades"), nil, &out)
	return out.Upgrades, err
}

func (c *Client) CanAfford(ctx context.Context, id uuid.UUID, upgrade string) (bool, error) {
	var out struct {
		Affordable bool `json:"affordable"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(id, "/upgrades/"+url.PathEscape(upgrade)+"/afford"), nil, &out)
	return out.Affordable, err
}

func (c *Client) Purchase(ctx context.Context, id uuid.UUID, upgrade string) (game.Receipt, error) {
	var out game.Receipt
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(id, "/purchase"), map[string]any{
		"upgrade": upgrade,
	}, &out)
	return out, err
}

func (c *Client) Tick(ctx context.Context, id uuid.UUID, elapsed time.Duration) (game.TickResult, error) {
	var out game.TickResult
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(id, "/tick"), map[string]any{
		"elapsed_ms": elapsed.Milliseconds(),
	}, &out)
	return out, err
}

func (c *Client) Settle(ctx context.Context, id uuid.UUID) (game.TickResult, error) {
	var out game.TickResult
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(id, "/settle"), nil, &out)
	return out, err
}

func (c *Client) Save(ctx context.Context, id uuid.UUID) error {
	return c.jsonRequest(ctx, http.MethodPost, gamePath(id, "/save"), nil, nil)
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	return c.jsonRequest(ctx, http.MethodDelete, gamePath(id, ""), nil, nil)
}

// Export returns the encoded save exactly as the server stores it.
func (c *Client) Export(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var out json.RawMessage
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(id, "/export"), nil, &out)
	return out, err
}

func (c *Client) Import(ctx context.Context, raw []byte) (CreatedGame, error) {
	var out CreatedGame
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/import", json.RawMessage(raw), &out)
	return out, err
}

func gamePath(id uuid.UUID, suffix string) string {
	return "/v1/games/" + id.String() + suffix
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
