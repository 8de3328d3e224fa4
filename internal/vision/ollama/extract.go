package ollama

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractor pulls the answer out of one known response shape. ok reports
// whether the shape matched; a matched shape may still carry no text.
type extractor func(body map[string]any) (text string, ok bool)

// extractors are tried in order until one matches.
var extractors = []extractor{
	messageContent,
	legacyResponse,
}

// messageContent handles the chat shape {"message":{"content":"..."}}.
func messageContent(body map[string]any) (string, bool) {
	msg, ok := body["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, _ := msg["content"].(string)
	return content, true
}

// legacyResponse handles the older generate shape {"response":"..."}.
func legacyResponse(body map[string]any) (string, bool) {
	text, ok := body["response"].(string)
	return text, ok
}

// extractText decodes a response body and returns the trimmed answer. Valid
// JSON in an unrecognized shape yields "" without an error.
func extractText(raw []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	body, ok := decoded.(map[string]any)
	if !ok {
		return "", nil
	}
	for _, extract := range extractors {
		if text, ok := extract(body); ok {
			return strings.TrimSpace(text), nil
		}
	}
	return "", nil
}
