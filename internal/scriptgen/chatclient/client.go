// Package chatclient provides an OpenAI-compatible chat completions client
// implementing the ScriptGenerator capability.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/scriptgen"
)

// API endpoints and paths.
const (
	apiChatCompletions = "/v1/chat/completions"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
)

// Generation defaults.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Static errors.
var (
	// ErrNoChoices indicates the model returned an empty choice list.
	ErrNoChoices = errors.New("chat service returned no choices")
	// ErrEmptyContent indicates the model returned an empty message.
	ErrEmptyContent = errors.New("chat service returned empty content")
)

// Client is an HTTP client for an OpenAI-compatible chat completions service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// New creates a chat client for the given endpoint, key, and model or
// deployment name.
func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate asks the model for a podcast script and returns the raw content
// string. Rate limits and 5xx responses are transient; policy rejections and
// other 4xx responses are permanent.
func (c *Client) Generate(
	ctx context.Context,
	text core.ExtractedText,
	roster []string,
	style core.StyleConfig,
) (string, error) {
	system := scriptgen.SystemPrompt(
		style.DocumentType, style.Tone, style.Language, style.TargetTurns, roster,
	)

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{
				Role: "user",
				Content: "Here is the document content:\n\n" +
					scriptgen.TruncateDocument(text.Text),
			},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", core.Permanent(fmt.Errorf("failed to marshal chat request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiChatCompletions,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return "", core.Permanent(fmt.Errorf("failed to create chat request: %w", err))
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	if c.apiKey != "" {
		httpReq.Header.Set(headerAuthorization, "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", core.Transient(
			fmt.Errorf("failed to reach chat service at %s: %w", c.baseURL, err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp)
	}

	var decoded chatResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return "", core.Permanent(fmt.Errorf("failed to decode chat response: %w", err))
	}

	if len(decoded.Choices) == 0 {
		return "", core.Permanent(ErrNoChoices)
	}

	content := decoded.Choices[0].Message.Content
	if content == "" {
		return "", core.Permanent(ErrEmptyContent)
	}

	return content, nil
}

// classifyStatus maps a non-OK response to a classified error.
func classifyStatus(resp *http.Response) error {
	var detail errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&detail)
	if decodeErr != nil {
		body, _ := io.ReadAll(resp.Body)
		detail.Error.Message = string(body)
	}

	err := fmt.Errorf(
		"chat service error (%s): %s (type: %s)",
		resp.Status, detail.Error.Message, detail.Error.Type,
	)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return core.Transient(err)
	}

	return core.Permanent(err)
}
