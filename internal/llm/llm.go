// Package llm submits generation requests to an external AI provider and
// turns structured responses into validated exams.
//
// Failures of any kind (transport, malformed payload, empty question set)
// surface uniformly as model.ErrGeneration; callers never see
// provider-specific error types. Generation is intentionally not
// idempotent: a non-zero sampling temperature makes repeated calls with
// identical input produce different exams. A failed attempt is not retried.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/prompt"
)

// temperature induces variation across repeated calls with the same input.
const temperature = 0.8

// Generator produces one exam from a built request.
type Generator interface {
	Generate(ctx context.Context, req prompt.Request) (*model.Exam, error)
}

// Provider names accepted by the --provider flag.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// extractJSON strips markdown code fences some models wrap around JSON
// payloads despite instructions not to.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	// Skip the opening fence and its optional language tag line.
	start := 3
	if idx := strings.Index(content[start:], "\n"); idx != -1 {
		start += idx + 1
	}
	if end := strings.LastIndex(content[start:], "```"); end != -1 {
		content = content[start : start+end]
	} else {
		content = content[start:]
	}
	return strings.TrimSpace(content)
}

// decodeExam parses a raw provider response into a validated exam.
func decodeExam(raw string) (*model.Exam, error) {
	cleaned := extractJSON(raw)

	var exam model.Exam
	if err := json.Unmarshal([]byte(cleaned), &exam); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", model.ErrGeneration, err)
	}
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGeneration, err)
	}
	return &exam, nil
}
