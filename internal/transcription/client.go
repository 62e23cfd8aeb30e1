package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/livescribe/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// pcmContentType marks the request body as raw 16-bit linear PCM,
// mono, 16 kHz, matching what the converter produces
const pcmContentType = "audio/L16; rate=16000; channels=1"

// maxErrorBodyBytes limits how much of a failure response is kept for logging
const maxErrorBodyBytes = 2048

// Client uploads PCM chunks to the transcription endpoint. It holds no
// state between calls: one request per Transcribe, no retry.
type Client struct {
	endpointURL string
	apiKey      string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient creates a new transcription client
func NewClient(endpointURL, apiKey string, timeoutSeconds int, logger *logger.Logger) *Client {
	return &Client{
		endpointURL: endpointURL,
		apiKey:      apiKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		logger: logger.Named("transcription-client"),
	}
}

// Transcribe uploads one PCM buffer and returns the candidate list. A
// transport failure is returned wrapped; a non-2xx response is returned
// as *ServiceError. Both are non-fatal to the pipeline: the caller logs
// and skips the chunk.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(pcm))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", pcmContentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(body)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	c.logger.Debug("Chunk transcribed",
		Int("pcm_bytes", len(pcm)),
		Int("candidates", len(result.Candidates)),
		String("elapsed", time.Since(start).String()))

	return &result, nil
}
