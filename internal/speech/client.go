package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrEmptyAudio         = errors.New("received empty audio data")
	ErrUnexpectedResponse = errors.New("unexpected content type")
)

// HTTPClient talks to a speech synthesis service over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// SynthesisRequest is the JSON body of a generate request.
type SynthesisRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"voice,omitempty"`
	Language    string  `json:"language"`
	Speed       float64 `json:"speed,omitempty"`
	Temperature float64 `json:"temperature"`
}

// ServiceError is the structured error body returned by the service.
type ServiceError struct {
	Status    int    `json:"-"`
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("speech service error (%d): %s (code: %s)", e.Status, e.Detail, e.ErrorCode)
	}
	return fmt.Sprintf("speech service error (%d): %s", e.Status, e.Detail)
}

// NewHTTPClient creates a client for the service at baseURL, e.g.
// "http://localhost:8000". The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSpeech returns the WAV audio for req.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerateSpeech, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to speech service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	if ct := resp.Header.Get(headerContentType); !strings.HasPrefix(ct, contentTypeWAV) {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrUnexpectedResponse, contentTypeWAV, ct)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// HealthCheck verifies that the service is reachable and healthy.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}
	return nil
}

// parseErrorResponse decodes a structured error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	svcErr := &ServiceError{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, svcErr); err == nil && svcErr.Detail != "" {
		return svcErr
	}
	svcErr.Detail = strings.TrimSpace(string(raw))
	if svcErr.Detail == "" {
		svcErr.Detail = http.StatusText(resp.StatusCode)
	}
	return svcErr
}
