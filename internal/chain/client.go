// Package chain is the HTTP client for the treasury service that executes
// on-chain token transfers. Like the other providers it is a black box: the
// caller gets a transaction hash or an error.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client implements the worker's ChainTransferor port.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	WalletAddress string  `json:"wallet_address"`
	Amount        float64 `json:"amount"`
	TokenSymbol   string  `json:"token_symbol"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) Transfer(ctx context.Context, walletAddress string, amount float64, tokenSymbol string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("chain service url not configured")
	}

	body, err := json.Marshal(transferRequest{
		WalletAddress: walletAddress,
		Amount:        amount,
		TokenSymbol:   tokenSymbol,
	})
	if err != nil {
		return "", fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chain service: %w", err)
	}
	defer resp.Body.Close()

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode transfer response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if tr.Error != "" {
			return "", fmt.Errorf("chain service: %s", tr.Error)
		}
		return "", fmt.Errorf("chain service: status %d", resp.StatusCode)
	}
	if tr.TxHash == "" {
		return "", fmt.Errorf("chain service returned no transaction hash")
	}
	return tr.TxHash, nil
}
