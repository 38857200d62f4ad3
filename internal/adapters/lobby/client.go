package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spire-dev/spire/internal/domain"
	"github.com/spire-dev/spire/internal/ports"
	"github.com/spire-dev/spire/pkg/log"
)

const (
	devAccountsEndpoint = "/v1/dev/accounts"
	charactersEndpoint  = "/v1/characters"

	// tokenHeader carries the account token on authenticated calls.
	tokenHeader = "authentication"

	maxErrorBody = 4 << 10
)

// Client implements ports.Lobby over HTTP with JSON bodies.
type Client struct {
	baseURL string
	client  ports.HTTPClient
	logger  log.Logger
}

// NewClient creates a lobby client for baseURL.
func NewClient(baseURL string, client ports.HTTPClient, logger log.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

type devAccountRequest struct {
	DevID string `json:"dev_id"`
}

type createCharacterRequest struct {
	Name string `json:"name"`
	Race string `json:"race"`
}

type listCharactersResponse struct {
	Characters []domain.CharacterMeta `json:"characters"`
}

type createCharacterResponse struct {
	Character domain.CharacterMeta `json:"character"`
}

// CreateDevAccount provisions or fetches the account for devID.
func (c *Client) CreateDevAccount(ctx context.Context, devID string) (domain.Account, error) {
	var meta domain.AccountMeta
	if err := c.do(ctx, http.MethodPost, devAccountsEndpoint, "", devAccountRequest{DevID: devID}, &meta); err != nil {
		return domain.Account{}, err
	}
	if meta.DevID == "" {
		meta.DevID = devID
	}
	acc := meta.ToAccount()
	if err := acc.Valid(); err != nil {
		return domain.Account{}, err
	}
	c.logger.Debug("dev account acquired", log.String("dev_id", devID), log.Int64("account_id", acc.ID))
	return acc, nil
}

// ListCharacters returns the characters of the token's account.
func (c *Client) ListCharacters(ctx context.Context, token string) ([]domain.Character, error) {
	var resp listCharactersResponse
	if err := c.do(ctx, http.MethodGet, charactersEndpoint, token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Character, 0, len(resp.Characters))
	for _, m := range resp.Characters {
		ch, err := m.ToCharacter()
		if err != nil {
			return nil, fmt.Errorf("list characters: %w", err)
		}
		out = append(out, ch)
	}
	return out, nil
}

// CreateCharacter creates a character for the token's account.
func (c *Client) CreateCharacter(ctx context.Context, token, name string, race domain.Race) (domain.Character, error) {
	var resp createCharacterResponse
	req := createCharacterRequest{Name: name, Race: race.String()}
	if err := c.do(ctx, http.MethodPost, charactersEndpoint, token, req, &resp); err != nil {
		return domain.Character{}, err
	}
	ch, err := resp.Character.ToCharacter()
	if err != nil {
		return domain.Character{}, fmt.Errorf("create character: %w", err)
	}
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %d: %s", domain.ErrLobby, method, endpoint, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
