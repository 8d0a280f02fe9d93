package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AIItem is one entry of the generation-service payload. The item vocabulary
// is the service's, not the record store's; see the normalizer for mapping.
type AIItem struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp string `json:"time_stamp,omitempty"`
}

// Generator produces a narrative diary text from normalized items.
type Generator interface {
	Generate(ctx context.Context, items []AIItem, persona int) (string, error)
}

// GenerationClient posts normalized items to the external generation service.
// Failures are not retried here; retry is a caller concern.
type GenerationClient struct {
	baseURL string
	http    *http.Client
}

func NewGenerationClient(baseURL string, timeout time.Duration) *GenerationClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenerationClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Items   []AIItem `json:"items"`
	Persona int      `json:"persona"`
}

type generateResponse struct {
	Diary string `json:"diary"`
}

func (c *GenerationClient) Generate(ctx context.Context, items []AIItem, persona int) (string, error) {
	payload, err := json.Marshal(generateRequest{Items: items, Persona: persona})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diary/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: service returned %d", ErrGenerationFailed, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	// An empty diary is a service failure, not a valid result.
	if out.Diary == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}
	return out.Diary, nil
}
