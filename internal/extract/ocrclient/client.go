// Package ocrclient provides an HTTP client for a standalone OCR service,
// implementing the TextExtractor capability.
package ocrclient

import (
	"bytes"
	"context"
	"encoding/base64"
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
	apiProcess = "/v1/ocr/process"
	apiHealth  = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// Static errors.
var (
	// ErrEmptyDocument indicates a request with no document bytes.
	ErrEmptyDocument = errors.New("document cannot be empty")
	// ErrEmptyResponse indicates the service returned no pages.
	ErrEmptyResponse = errors.New("OCR service returned no pages")
)

// Client is an HTTP client for the OCR service. It encapsulates the HTTP
// configuration and classifies failures for the stage retry loop.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// Request is the JSON payload for an OCR processing request. The document is
// carried base64-encoded, matching the service contract for local files.
type Request struct {
	Model    string `json:"model"`
	Kind     string `json:"kind"`
	Document string `json:"document"`
}

// Response is the JSON payload returned by the OCR service.
type Response struct {
	Pages []string `json:"pages"`
}

// errorResponse is a structured error from the service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// New creates an OCR client. The baseURL should include protocol and port
// (e.g. "http://localhost:8000").
func New(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract sends the document to the OCR service and returns the page texts
// joined with their boundary offsets. Service unavailability and 5xx
// responses are transient; unreadable input and other 4xx responses are
// permanent.
func (c *Client) Extract(ctx context.Context, doc core.Document) (core.ExtractedText, error) {
	if len(doc.Bytes) == 0 {
		return core.ExtractedText{}, core.Permanent(ErrEmptyDocument)
	}

	payload := Request{
		Model:    c.model,
		Kind:     string(doc.Kind),
		Document: base64.StdEncoding.EncodeToString(doc.Bytes),
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return core.ExtractedText{}, core.Permanent(
			fmt.Errorf("failed to marshal OCR request: %w", err),
		)
	}

	url := c.baseURL + apiProcess

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return core.ExtractedText{}, core.Permanent(
			fmt.Errorf("failed to create OCR request: %w", err),
		)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.ExtractedText{}, core.Transient(
			fmt.Errorf("failed to reach OCR service at %s: %w", c.baseURL, err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.ExtractedText{}, classifyStatus(resp)
	}

	var decoded Response

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return core.ExtractedText{}, core.Permanent(
			fmt.Errorf("failed to decode OCR response: %w", err),
		)
	}

	if len(decoded.Pages) == 0 {
		return core.ExtractedText{}, core.Permanent(ErrEmptyResponse)
	}

	return joinPages(decoded.Pages), nil
}

// HealthCheck verifies the OCR service is reachable and healthy.
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

// classifyStatus maps a non-OK response to a classified error, preserving any
// structured detail the service returned.
func classifyStatus(resp *http.Response) error {
	var detail errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&detail)
	if decodeErr != nil {
		body, _ := io.ReadAll(resp.Body)
		detail.Detail = string(body)
	}

	err := fmt.Errorf(
		"OCR service error (%s): %s (code: %s)",
		resp.Status, detail.Detail, detail.ErrorCode,
	)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return core.Transient(err)
	}

	return core.Permanent(err)
}

// joinPages concatenates page texts with blank lines and records the offset
// at which each page begins.
func joinPages(pages []string) core.ExtractedText {
	var builder bytes.Buffer

	offsets := make([]int, 0, len(pages))

	for i, page := range pages {
		if i > 0 {
			builder.WriteString("\n\n")
		}

		offsets = append(offsets, builder.Len())
		builder.WriteString(page)
	}

	return core.ExtractedText{Text: builder.String(), PageOffsets: offsets}
}
