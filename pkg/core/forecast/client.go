// Package forecast talks to the calculation and spreadsheet-export backend.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// maxErrorText caps how much of an unparseable error body ends up in APIError.
const maxErrorText = 300

// APIError is a failure reported by the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("forecast API error (status %d): %s", e.Status, e.Message)
}

// ExportFile is the spreadsheet returned by the export endpoint.
type ExportFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Backend is what sessions need from the calculation service.
type Backend interface {
	Forecast(ctx context.Context, p *assumption.Payload) (*Result, error)
	Export(ctx context.Context, p *assumption.Payload) (*ExportFile, error)
}

// Client is an HTTP client for the calculation API. It does not retry.
type Client struct {
	baseURL      string
	forecastPath string
	exportPath   string
	client       *http.Client
	log          zerolog.Logger
}

// NewClient creates a client for the configured backend.
func NewClient(cfg config.BackendConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	forecastPath := cfg.ForecastPath
	if forecastPath == "" {
		forecastPath = "/api/forecast"
	}
	exportPath := cfg.ExportPath
	if exportPath == "" {
		exportPath = "/api/export"
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		forecastPath: forecastPath,
		exportPath:   exportPath,
		client:       &http.Client{Timeout: timeout},
		log:          log.With().Str("client", "forecast_api").Logger(),
	}
}

// Forecast submits the payload and decodes the statements.
func (c *Client) Forecast(ctx context.Context, p *assumption.Payload) (*Result, error) {
	start := time.Now()
	resp, body, err := c.post(ctx, c.forecastPath, p)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp, body)
	}

	res, err := DecodeResult(body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.Status = resp.StatusCode
		}
		return nil, err
	}

	c.log.Debug().
		Int("years", p.Years).
		Int("lines", len(res.Lines)).
		Dur("took", time.Since(start)).
		Msg("Forecast received")
	return res, nil
}

// Export submits the payload to the export endpoint and returns the file bytes.
func (c *Client) Export(ctx context.Context, p *assumption.Payload) (*ExportFile, error) {
	resp, body, err := c.post(ctx, c.exportPath, p)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp, body)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: eb.Error}
		}
	}

	file := &ExportFile{Data: body, ContentType: ct, Filename: "financial_forecast.xlsx"}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			file.Filename = params["filename"]
		}
	}
	c.log.Debug().Int("bytes", len(body)).Str("file", file.Filename).Msg("Export received")
	return file, nil
}

// post sends a JSON POST and returns the response with its body read.
func (c *Client) post(ctx context.Context, path string, p *assumption.Payload) (*http.Response, []byte, error) {
	if p == nil {
		return nil, nil, fmt.Errorf("payload is required")
	}
	jsonData, err := p.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := c.baseURL + path
	c.log.Debug().Str("url", url).Int("bytes", len(jsonData)).Msg("Calling forecast API")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}

// errorFromResponse extracts a readable message from a failed response:
// {"error": ...} bodies, HTML error pages (title or first heading), or raw text.
func errorFromResponse(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		apiErr.Message = eb.Error
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") || strings.HasPrefix(text, "<") {
		if msg := htmlErrorMessage(text); msg != "" {
			apiErr.Message = msg
		}
		return apiErr
	}

	if text != "" {
		if len(text) > maxErrorText {
			text = text[:maxErrorText] + "..."
		}
		apiErr.Message = text
	}
	return apiErr
}

func htmlErrorMessage(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	detail := strings.TrimSpace(doc.Find("p").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	switch {
	case title != "" && detail != "":
		return title + ": " + detail
	case title != "":
		return title
	}
	return detail
}
