// Package transcriber turns audio payloads into text via the Gemini
// generateContent API. Every expected failure mode is expressed as an
// outcome value; Transcribe and TestConnection never return errors.
package transcriber

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/murmur-app/murmur/pkg/httpclient"
)

// Inaudible is the sentinel emitted when the audio is silent or the model
// produced no usable text.
const Inaudible = "[inaudible]"

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-3.0-flash"

	// One bounded attempt per call; the timeout is the only
	// cancellation-like control.
	requestTimeout = 60 * time.Second
)

const transcriptionInstruction = `You are a precise audio transcription assistant. Your task is to:
1. REMOVE all filler words: "um", "uh", "er", "ah", "like" (when used as filler), "you know", "basically", verbal pauses, repeated stuttering words
2. PRESERVE the speaker's intended meaning exactly
3. CORRECT obvious grammatical speech errors while maintaining the speaker's voice
4. OUTPUT only the clean transcription text, nothing else - no quotes, no labels, no explanations
5. If audio is unclear or silent, respond with "[inaudible]"

Transcribe the audio now:`

// Result is the outcome of a transcription attempt.
type Result struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestResult is the outcome of an API key validation attempt.
type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client calls the remote transcription API. It is guarded by its own mutex,
// independent of the archive's exclusion domain, so a slow network call
// never starves local reads.
type Client struct {
	mu         sync.Mutex
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type Option func(*Client)

// WithAPIKey sets the initial API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a transcription client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: httpclient.New(requestTimeout),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateAPIKey replaces the key used by subsequent calls. It does not
// persist the key; that is the settings collaborator's job.
func (c *Client) UpdateAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}

// Transcribe sends the audio payload for transcription. The payload must be
// a complete encoded clip (WAV container).
func (c *Client) Transcribe(ctx context.Context, audio []byte) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey == "" {
		return Result{Error: "No API key available. Please set your API key in Settings."}
	}

	request := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: "audio/wav",
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
				{Text: "Transcribe this audio."},
			},
		}},
		SystemInstruction: systemInstruction{
			Parts: []textPart{{Text: transcriptionInstruction}},
		},
	}

	status, body, err := c.post(ctx, c.apiKey, request)
	if err != nil {
		return Result{Error: fmt.Sprintf("Network error: %v", err)}
	}

	if status < 200 || status > 299 {
		return Result{Error: classifyAPIError(status, body)}
	}

	var response generateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return Result{Error: fmt.Sprintf("Failed to parse response: %v", err)}
	}

	// The API can report an error object even on a 2xx status.
	if response.Error != nil {
		return Result{Error: response.Error.Message}
	}

	text := Inaudible
	if len(response.Candidates) > 0 && len(response.Candidates[0].Content.Parts) > 0 {
		text = strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text)
	}
	if text == "" {
		text = Inaudible
	}

	slog.Debug("Transcription completed", "chars", len(text))
	return Result{Success: true, Text: text}
}

// TestConnection validates an API key with a minimal request. Success is
// solely whether the API answered 2xx; the response content is not checked.
// If overrideKey is empty the configured key is used.
func (c *Client) TestConnection(ctx context.Context, overrideKey string) TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := overrideKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return TestResult{Error: "No API key provided"}
	}

	request := generateRequest{
		Contents: []content{{
			Parts: []part{{Text: "Say 'OK' if you can hear me."}},
		}},
		SystemInstruction: systemInstruction{
			Parts: []textPart{{Text: "You are a test assistant. Respond briefly."}},
		},
	}

	status, body, err := c.post(ctx, key, request)
	if err != nil {
		return TestResult{Error: fmt.Sprintf("Network error: %v", err)}
	}

	if status >= 200 && status <= 299 {
		return TestResult{Success: true}
	}

	if isInvalidKeyBody(body) {
		return TestResult{Error: "Invalid API key"}
	}
	return TestResult{Error: "API validation failed"}
}

// post submits one generateContent request and returns the status code and
// raw body. Transport-level failures come back as errors for the caller to
// classify.
func (c *Client) post(ctx context.Context, key string, request generateRequest) (int, []byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return 0, nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// classifyAPIError maps a non-2xx response to a user-readable message by
// substring inspection of known error markers.
func classifyAPIError(status int, body []byte) string {
	text := string(body)
	switch {
	case isInvalidKeyBody(body):
		return "Invalid API key. Please check your API key in Settings."
	case strings.Contains(text, "quota") || strings.Contains(text, "RESOURCE_EXHAUSTED"):
		return "API quota exceeded. Please try again later."
	case strings.Contains(text, "rate limit") || strings.Contains(text, "RATE_LIMIT"):
		return "Rate limit reached. Please wait a moment and try again."
	default:
		return fmt.Sprintf("API error (%d): %s", status, text)
	}
}

func isInvalidKeyBody(body []byte) bool {
	text := string(body)
	return strings.Contains(text, "API key invalid") || strings.Contains(text, "API_KEY_INVALID")
}
