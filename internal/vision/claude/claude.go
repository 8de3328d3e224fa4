package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/nutrivision/internal/imagecodec"
	"github.com/vbonduro/nutrivision/internal/vision"
)

// maxTokens leaves room for an itemized calorie list with a short list of
// assumptions.
const maxTokens = 1024

type Config struct {
	APIKey  string
	Timeout time.Duration
	// BaseURL overrides the Anthropic API root, e.g. for tests.
	BaseURL string
}

type ClaudeAnalyzer struct {
	client *anthropic.Client
}

func NewClaudeAnalyzer(cfg Config) *ClaudeAnalyzer {
	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeAnalyzer{client: anthropic.NewClient(cfg.APIKey, opts...)}
}

func buildMessages(req vision.Request) []anthropic.Message {
	return []anthropic.Message{{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				imagecodec.MIMEType,
				req.Image,
			)),
			anthropic.NewTextMessageContent(req.Instruction),
		},
	}}
}

func (a *ClaudeAnalyzer) Analyze(ctx context.Context, req vision.Request) (string, error) {
	temperature := float32(vision.ClampTemperature(req.Temperature))

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		Messages:    buildMessages(req),
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", vision.ClassifyTransportError(fmt.Errorf("failed to call claude: %w", err))
	}

	for _, content := range resp.Content {
		if content.Type == anthropic.MessagesContentTypeText {
			return strings.TrimSpace(content.GetText()), nil
		}
	}
	return "", nil
}
