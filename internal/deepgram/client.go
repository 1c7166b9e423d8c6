// Package deepgram provides a client for the Deepgram speak REST API, the
// external synthesis provider behind the /tts endpoint.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// API endpoints and paths.
const (
	defaultBaseURL = "https://api.deepgram.com"
	apiSpeak       = "/v1/speak"
	queryModel     = "model"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	authSchemeToken     = "Token "
)

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrModelEmpty     = errors.New("model cannot be empty")
	ErrEmptyAudioData = errors.New("received empty audio data")
)

// Error messages.
const (
	errFmtServiceError       = "deepgram error (%s): %s"
	errFmtServiceNonOKStatus = "deepgram returned non-OK status: %s, body: %s"
)

// Client represents a client for the Deepgram speak API. It encapsulates the
// HTTP configuration and credentials for speech generation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// speakRequest defines the JSON payload for speak requests. The voice model
// travels as a query parameter, not in the body.
type speakRequest struct {
	Text string `json:"text"`
}

// errorResponse represents a structured error response from Deepgram.
type errorResponse struct {
	ErrCode string `json:"err_code,omitempty"`
	ErrMsg  string `json:"err_msg,omitempty"`
}

// NewClient creates a Deepgram client using the production endpoint.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(defaultBaseURL, apiKey, timeout)
}

// NewClientWithBaseURL creates a client against a custom endpoint. This
// constructor is primarily for testing against a local stand-in service.
func NewClientWithBaseURL(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize converts text to audio using the given voice model and returns
// the raw audio payload. The response format follows the Deepgram default
// (MP3 for aura voices).
func (c *Client) Synthesize(ctx context.Context, text, model string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	if model == "" {
		return nil, ErrModelEmpty
	}

	requestBody, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := c.baseURL + apiSpeak + "?" + url.Values{queryModel: []string{model}}.Encode()

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		requestURL,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAuthorization, authSchemeToken+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to deepgram at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudioData
	}

	return audioData, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service. If structured parsing fails, it falls back to the raw response
// body so diagnostic information is preserved.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, "<unreadable body>")
	}

	var errorResp errorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.ErrMsg != "" {
		return fmt.Errorf(errFmtServiceError, resp.Status, errorResp.ErrMsg)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
