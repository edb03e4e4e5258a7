package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gemini "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/prompt"
)

// GeminiClient generates exams through the Google Gemini API with native
// structured output.
type GeminiClient struct {
	client *gemini.Client
	model  string
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := gemini.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: modelName}, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// examResponseSchema mirrors prompt.ExamSchema in the typed form the Gemini
// API takes. The two must stay in sync.
var examResponseSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"examTitle": {
			Type:        gemini.TypeString,
			Description: "A suitable title for the exam in Vietnamese, based on the exam type and grade.",
		},
		"duration": {
			Type:        gemini.TypeInteger,
			Description: "The duration of the exam in minutes. E.g., 15, 45, 90.",
		},
		"questions": {
			Type:        gemini.TypeArray,
			Description: "An array of multiple-choice questions.",
			Items: &gemini.Schema{
				Type: gemini.TypeObject,
				Properties: map[string]*gemini.Schema{
					"questionText": {
						Type:        gemini.TypeString,
						Description: "The full text of the question, with mathematical formulas in LaTeX format if necessary.",
					},
					"options": {
						Type:        gemini.TypeArray,
						Description: "An array of 4 strings, representing the possible answers (A, B, C, D).",
						Items:       &gemini.Schema{Type: gemini.TypeString},
					},
					"correctAnswerIndex": {
						Type:        gemini.TypeInteger,
						Description: "The 0-based index of the correct answer in the 'options' array.",
					},
					"explanation": {
						Type:        gemini.TypeString,
						Description: "A detailed step-by-step explanation for how to arrive at the correct answer.",
					},
				},
				Required: []string{"questionText", "options", "correctAnswerIndex", "explanation"},
			},
		},
	},
	Required: []string{"examTitle", "duration", "questions"},
}

// Generate submits the request with the response schema enforced natively.
func (c *GeminiClient) Generate(ctx context.Context, req prompt.Request) (*model.Exam, error) {
	m := c.client.GenerativeModel(c.model)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = examResponseSchema
	m.SetTemperature(temperature)

	resp, err := m.GenerateContent(ctx, gemini.Text(req.Instructions))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGeneration, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: provider returned no candidates", model.ErrGeneration)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(gemini.Text); ok {
			sb.WriteString(string(text))
		}
	}
	raw := sb.String()
	slog.Debug("generation response", "provider", ProviderGemini, "raw", raw)

	return decodeExam(raw)
}
