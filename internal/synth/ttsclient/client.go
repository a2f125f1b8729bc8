// Package ttsclient provides an HTTP client for a standalone TTS service,
// implementing the Synthesizer capability.
package ttsclient

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
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
)

// Static errors.
var (
	// ErrTextEmpty indicates a synthesis request with no text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates the service returned an empty body.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// Client is a client for the standalone TTS HTTP service. It encapsulates the
// HTTP configuration and classifies failures for the stage retry loop.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	temperature float64
}

// Request defines the JSON payload structure for TTS generation requests.
type Request struct {
	// Text contains the input text to convert to speech.
	Text string `json:"text"`

	// Voice selects the synthesizer voice for the speaker.
	Voice string `json:"voice,omitempty"`

	// SpeakerRefPath optionally specifies a server-side path to a speaker
	// reference file for voice cloning.
	SpeakerRefPath string `json:"speaker_ref_path,omitempty"`

	// Language specifies the target language code (e.g., "en", "es").
	Language string `json:"language"`

	// SampleRate requests the output sample rate in Hz, so that all
	// segments of a run share one rate and assembly never resamples.
	SampleRate int `json:"sample_rate,omitempty"`

	// Temperature controls randomness in speech generation.
	Temperature float64 `json:"temperature"`
}

// errorResponse represents a structured error response from the TTS service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// New creates and configures an HTTP client for the TTS service. The baseURL
// should include the protocol and port (e.g., "http://localhost:8000").
func New(baseURL string, temperature float64, timeout time.Duration) *Client {
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &Client{
		baseURL:     baseURL,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends a TTS generation request for one piece of text in the
// given voice and returns the raw WAV bytes. Service unavailability and 5xx
// responses are transient; unsupported voices and other 4xx responses are
// permanent.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	profile core.VoiceProfile,
) ([]byte, error) {
	if text == "" {
		return nil, core.Permanent(ErrTextEmpty)
	}

	payload := Request{
		Text:           text,
		Voice:          profile.Voice,
		SpeakerRefPath: profile.RefPath,
		Language:       profile.Language,
		SampleRate:     profile.SampleRate,
		Temperature:    c.temperature,
	}

	if payload.Language == "" {
		payload.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	url := c.baseURL + apiGenerateSpeech

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.Transient(
			fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, core.Permanent(fmt.Errorf(
			"unexpected content type: expected %s, got %s", contentTypeWAV, contentType,
		))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Transient(fmt.Errorf("failed to read audio data: %w", err))
	}

	if len(audioData) == 0 {
		return nil, core.Permanent(ErrEmptyAudio)
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running and operational.
// Health checks should be performed before processing large workloads to fail
// fast when the service is unavailable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
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

// classifyStatus decodes a structured JSON error from the service, falling
// back to the raw response body, and classifies it for the retry loop.
func (c *Client) classifyStatus(resp *http.Response) error {
	var detail errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&detail)
	if decodeErr != nil {
		body, _ := io.ReadAll(resp.Body)
		detail.Detail = string(body)
	}

	err := fmt.Errorf(
		"TTS service error (%s): %s (code: %s)",
		resp.Status, detail.Detail, detail.ErrorCode,
	)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return core.Transient(err)
	}

	return core.Permanent(err)
}
