package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// Transcriber converts an audio submission into text. Transcription happens
// synchronously at ingestion; the raw audio is never persisted.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error)
}

// WhisperClient calls the OpenAI transcription endpoint over multipart HTTP.
type WhisperClient struct {
	apiKey   string
	model    string
	language string
	url      string
	http     *http.Client
}

func NewWhisperClient(apiKey, model string, timeout time.Duration) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &WhisperClient{
		apiKey:   apiKey,
		model:    model,
		language: "ko",
		url:      defaultTranscriptionURL,
		http:     &http.Client{Timeout: timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return "", err
	}
	if err := mw.WriteField("language", c.language); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, msg)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}
