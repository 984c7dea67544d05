package justthetip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/utils"
)

// Client talks to the JustTheTip balance service, the primary payout rail.
// Users are addressed by their linked Discord id.
type Client interface {
	CreditBalance(ctx context.Context, discordID string, amount float64, reason string) error
	GetBalance(ctx context.Context, discordID string) (float64, error)
	LinkAccount(ctx context.Context, userID, discordID string) error
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(log *logger.Logger) (Client, error) {
	serviceLog := log.With("client", "JustTheTipClient")

	baseURL := utils.GetEnv("JUSTTHETIP_API_URL", "", log)
	if baseURL == "" {
		return nil, fmt.Errorf("JUSTTHETIP_API_URL is not set")
	}
	apiKey := utils.GetEnv("JUSTTHETIP_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("JUSTTHETIP_API_KEY is not set")
	}

	return &client{
		log:        serviceLog,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

type creditRequest struct {
	DiscordID string  `json:"discord_id"`
	Amount    float64 `json:"amount"`
	Reason    string  `json:"reason"`
	Source    string  `json:"source"`
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

type linkRequest struct {
	QualifyFirstUserID string `json:"qualify_first_user_id"`
	DiscordID          string `json:"discord_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *client) CreditBalance(ctx context.Context, discordID string, amount float64, reason string) error {
	body, err := json.Marshal(creditRequest{
		DiscordID: discordID,
		Amount:    amount,
		Reason:    reason,
		Source:    "qualifyfirst",
	})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "/api/credit-balance", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

func (c *client) GetBalance(ctx context.Context, discordID string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/balance/"+discordID, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return 0, err
	}
	var parsed balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Balance, nil
}

func (c *client) LinkAccount(ctx context.Context, userID, discordID string) error {
	body, err := json.Marshal(linkRequest{
		QualifyFirstUserID: userID,
		DiscordID:          discordID,
	})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "/api/link-account", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

func (c *client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("justthetip http %d: %s", resp.StatusCode, parsed.Error)
	}
	return fmt.Errorf("justthetip http %d", resp.StatusCode)
}
