// Package gemini provides a client for the Gemini generateContent REST API,
// used as the external transcription provider behind the /transcribe endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL   = "https://generativelanguage.googleapis.com"
	apiModels        = "/v1beta/models/"
	actionGenContent = ":generateContent"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAPIKey      = "x-goog-api-key"
	contentTypeJSON   = "application/json"
)

// transcriptionPrompt is the fixed instruction sent alongside every audio
// payload. It asks the model to normalize spelled-out contact details into
// their canonical written form and to strip timestamps and speaker labels.
const transcriptionPrompt = `Please transcribe this audio accurately. If any email addresses, phone numbers, physical addresses, or similar details are detected, transcribe them carefully and standardize them to the correct format.

For example:

If an email is spoken with spaces or capital letters (e.g. 'N I L A B 102 @ GMAIL dot COM' or 'Nilab 102 @ Gmail.com'), convert it to lowercase without spaces (e.g. nilab102@gmail.com).

If a phone number is spoken digit by digit or with pauses, reconstruct it into a continuous, correctly formatted number (e.g. 'zero one six one six seven six six six six' -> 0161676666).

The speaker's English accent is primarily Arabic and Indian, so please pay extra attention to accent-related nuances and common pronunciation patterns when transcribing and normalizing details. Remove time stamps and speaker labels from the transcription.`

// Static errors.
var (
	ErrAudioEmpty    = errors.New("audio payload cannot be empty")
	ErrMimeTypeEmpty = errors.New("mime type cannot be empty")
	ErrNoCandidates  = errors.New("response contained no candidates")
	ErrNoText        = errors.New("response candidate contained no text")
)

// Error messages.
const (
	errFmtServiceError       = "gemini error (%s): %s"
	errFmtServiceNonOKStatus = "gemini returned non-OK status: %s, body: %s"
)

// Client provides Gemini transcription functionality.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Request body structures per the generateContent API contract.
type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type contentPart struct {
	InlineData *inlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type content struct {
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a Gemini client for the given transcription model.
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(defaultBaseURL, apiKey, model, timeout)
}

// NewClientWithBaseURL creates a client against a custom endpoint. This
// constructor is primarily for testing against a local stand-in service.
func NewClientWithBaseURL(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Transcribe submits the audio payload with the fixed instruction prompt and
// returns the transcript text. Temperature is pinned to zero so repeated
// submissions of the same audio stay stable.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrAudioEmpty
	}

	if mimeType == "" {
		return "", ErrMimeTypeEmpty
	}

	requestBody, err := json.Marshal(generateContentRequest{
		Contents: []content{{
			Parts: []contentPart{
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
				{Text: transcriptionPrompt},
			},
		}},
		GenerationConfig: generationConfig{Temperature: 0},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := c.baseURL + apiModels + c.model + actionGenContent

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		requestURL,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to gemini at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseErrorResponse(resp)
	}

	var genResp generateContentResponse

	err = json.NewDecoder(resp.Body).Decode(&genResp)
	if err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return extractText(&genResp)
}

// extractText joins the text parts of the first candidate.
func extractText(resp *generateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	var builder strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}

	if builder.Len() == 0 {
		return "", ErrNoText
	}

	return builder.String(), nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service, falling back to the raw response body.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, "<unreadable body>")
	}

	var errorResp apiError

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Error.Message != "" {
		return fmt.Errorf(errFmtServiceError, resp.Status, errorResp.Error.Message)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
