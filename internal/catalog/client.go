// Package catalog is the HTTP client for the course platform's internal
// content API. Course and lesson CRUD live on the platform side; this client
// only reads the lesson tree and translation text the pipeline consumes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"coursejobs/internal/fanout"
)

// Client implements fanout.Catalog and the worker's LessonSource.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type translationDTO struct {
	LessonID string `json:"lesson_id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// LessonTranslations returns every (lesson, language) leaf of the course
// tree with its source text.
func (c *Client) LessonTranslations(ctx context.Context, courseID string) ([]fanout.LessonTranslation, error) {
	var dtos []translationDTO
	path := fmt.Sprintf("/courses/%s/translations", url.PathEscape(courseID))
	if err := c.getJSON(ctx, path, &dtos); err != nil {
		return nil, fmt.Errorf("fetch course translations: %w", err)
	}

	out := make([]fanout.LessonTranslation, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, fanout.LessonTranslation{
			LessonID: d.LessonID,
			Language: d.Language,
			Text:     d.Text,
		})
	}
	return out, nil
}

// LessonText fetches the source text for one lesson translation.
func (c *Client) LessonText(ctx context.Context, lessonID, language string) (string, error) {
	var dto translationDTO
	path := fmt.Sprintf("/lessons/%s/translations/%s", url.PathEscape(lessonID), url.PathEscape(language))
	if err := c.getJSON(ctx, path, &dto); err != nil {
		return "", fmt.Errorf("fetch lesson text: %w", err)
	}
	return dto.Text, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("catalog: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
