// Package speech is the HTTP client for the text-to-speech provider. The
// provider is a black box: a request either yields audio or an error, and
// the error rides the job store's retry path.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much synthesized audio we are willing to read.
const maxResponseBytes = 50 * 1024 * 1024

// Client implements the worker's Synthesizer port.
type Client struct {
	baseURL    string
	voice      string
	httpClient *http.Client
}

func NewClient(baseURL, voice string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		voice:      voice,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

type synthesizeResponse struct {
	AudioBase64 string  `json:"audio_base64"`
	DurationSec float64 `json:"duration_sec"`
}

func (c *Client) Synthesize(ctx context.Context, language, text string) ([]byte, float64, error) {
	if c.baseURL == "" {
		return nil, 0, fmt.Errorf("tts base url not configured")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Language: language, Voice: c.voice})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("call tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, 0, fmt.Errorf("tts: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read tts response: %w", err)
	}
	if int64(len(raw)) > maxResponseBytes {
		return nil, 0, fmt.Errorf("tts response too large (>%d bytes)", maxResponseBytes)
	}

	var sr synthesizeResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, 0, fmt.Errorf("decode tts response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(sr.AudioBase64)
	if err != nil {
		return nil, 0, fmt.Errorf("decode tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, 0, fmt.Errorf("tts returned empty audio")
	}
	return audio, sr.DurationSec, nil
}
