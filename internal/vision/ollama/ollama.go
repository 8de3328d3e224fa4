package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/nutrivision/internal/vision"
)

const (
	chatPath = "/api/chat"
	tagsPath = "/api/tags"

	// DefaultTimeout absorbs the cold start of a model that is not yet loaded.
	DefaultTimeout = 600 * time.Second

	maxErrorBody = 1024
)

// Config describes how to reach the Ollama server. A nil HTTPClient gets a
// client with Timeout as its overall deadline.
type Config struct {
	Host       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	host   string
	client *http.Client
}

func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		host:   strings.TrimRight(cfg.Host, "/"),
		client: client,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  chatOptions   `json:"options"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

// Analyze posts a single non-streaming user message with the image attached
// and waits for the complete reply.
func (c *Client) Analyze(ctx context.Context, req vision.Request) (string, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: req.Instruction,
			Images:  []string{req.Image},
		}},
		Options: chatOptions{Temperature: vision.ClampTemperature(req.Temperature)},
		Stream:  false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+chatPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	return extractText(raw)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var tags tagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// do sends req and returns the body of a 2xx response. Transport failures
// come back tagged with vision.ErrConnection or vision.ErrTimeout.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, vision.ClassifyTransportError(fmt.Errorf("failed to call ollama: %w", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, vision.ClassifyTransportError(fmt.Errorf("failed to read response: %w", err))
	}
	return raw, nil
}
