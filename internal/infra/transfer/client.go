// Package transfer provides the two implementations of the external
// ownership-transfer service boundary: an HTTP client for a real service and
// an in-process simulator for development and tests.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"custodex/internal/domain"
)

// Client is the REST client for the external ownership-transfer service
// (Boundary Layer). The service moves tokens between external accounts and
// this system's custody; the client only reports success or rejection.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a transfer service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "transfer_client"),
	}
}

type transferRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type transferResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Msg     string `json:"msg"`
}

// Pull asks the service to move amount of token from the account's external
// holdings into custody.
func (c *Client) Pull(ctx context.Context, token domain.Token, from domain.Account, amount int64) error {
	return c.do(ctx, "pull", "/v1/pull", token, from, amount)
}

// Push asks the service to move amount of token from custody to the
// account's external holdings.
func (c *Client) Push(ctx context.Context, token domain.Token, to domain.Account, amount int64) error {
	return c.do(ctx, "push", "/v1/push", token, to, amount)
}

func (c *Client) do(ctx context.Context, op, path string, token domain.Token, account domain.Account, amount int64) error {
	reqBody := transferRequest{
		Token:   string(token),
		Account: string(account),
		Amount:  amount,
	}
	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return domain.NewTransferError(op, token, account, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return domain.NewTransferError(op, token, account, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Could not reach the service at all; safe for the caller to retry
		// since nothing was applied on our side.
		return domain.NewRetriableTransferError(op, token, account, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.NewRetriableTransferError(op, token, account,
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes)))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewTransferError(op, token, account,
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes)))
	}

	var apiResp transferResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return domain.NewTransferError(op, token, account, fmt.Errorf("failed to parse response: %w", err))
	}
	if !apiResp.Success {
		return domain.NewTransferError(op, token, account,
			fmt.Errorf("code=%s msg=%s", apiResp.Code, apiResp.Msg))
	}

	c.logger.Debug("Transfer completed",
		slog.String("op", op),
		slog.String("token", string(token)),
		slog.String("account", string(account)),
		slog.Int64("amount", amount))
	return nil
}
