// Package prompt builds generation requests: a natural-language instruction
// payload plus the fixed structured-output schema the response must match.
// It performs no I/O at request time.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/thanhvu/examgen/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce sync.Once
	loadErr  error
	textTmpl *template.Template
	bankTmpl *template.Template
)

// Request is a built generation request. Schema describes the exact JSON
// shape the response must take; providers without native schema support
// append SchemaJSON to the instructions instead.
type Request struct {
	Instructions string
	Schema       map[string]any
}

// SchemaJSON renders the response schema as indented JSON.
func (r Request) SchemaJSON() string {
	data, err := json.MarshalIndent(r.Schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ExamSchema is the fixed response schema shared by both generation paths.
var ExamSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"examTitle": map[string]any{
			"type":        "string",
			"description": "A suitable title for the exam in Vietnamese, based on the exam type and grade. For example: 'Đề kiểm tra 15 phút - Đại số 10' or 'Đề thi học kỳ 1 - Môn Toán Lớp 12'.",
		},
		"duration": map[string]any{
			"type":        "integer",
			"description": "The duration of the exam in minutes. E.g., 15, 45, 90.",
		},
		"questions": map[string]any{
			"type":        "array",
			"description": "An array of multiple-choice questions.",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questionText": map[string]any{
						"type":        "string",
						"description": "The full text of the question, including any mathematical formulas in LaTeX format if necessary (e.g., `$\\sqrt{x^2+1}$`).",
					},
					"options": map[string]any{
						"type":        "array",
						"description": "An array of 4 strings, representing the possible answers (A, B, C, D).",
						"items":       map[string]any{"type": "string"},
					},
					"correctAnswerIndex": map[string]any{
						"type":        "integer",
						"description": "The 0-based index of the correct answer in the 'options' array.",
					},
					"explanation": map[string]any{
						"type":        "string",
						"description": "A detailed step-by-step explanation for how to arrive at the correct answer.",
					},
				},
				"required": []any{"questionText", "options", "correctAnswerIndex", "explanation"},
			},
		},
	},
	"required": []any{"examTitle", "duration", "questions"},
}

func load() error {
	loadOnce.Do(func() {
		parse := func(name string) *template.Template {
			content, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt template %s: %w", name, err)
				return nil
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return nil
			}
			return tmpl
		}
		textTmpl = parse("text_exam.txt")
		if loadErr != nil {
			return
		}
		bankTmpl = parse("bank_exam.txt")
	})
	return loadErr
}

type textData struct {
	Grade         string
	ExamType      string
	QuestionCount int
	SourceText    string
}

type bankData struct {
	Grade         string
	Chapter       string
	Topic         string
	QuestionCount int
	Examples      string
}

// BuildTextRequest builds the request for the text-sourced path. Options
// must already be validated.
func BuildTextRequest(o model.TextOptions) (Request, error) {
	if err := load(); err != nil {
		return Request{}, err
	}

	var buf bytes.Buffer
	err := textTmpl.Execute(&buf, textData{
		Grade:         o.Grade,
		ExamType:      o.ExamType,
		QuestionCount: o.QuestionCount,
		SourceText:    o.SourceText,
	})
	if err != nil {
		return Request{}, err
	}
	return Request{Instructions: buf.String(), Schema: ExamSchema}, nil
}

// BuildBankRequest builds the request for the bank-sourced path. Options
// must already be validated.
func BuildBankRequest(o model.BankOptions) (Request, error) {
	if err := load(); err != nil {
		return Request{}, err
	}

	var examples strings.Builder
	for i, q := range o.BaseQuestions {
		if i > 0 {
			examples.WriteByte('\n')
		}
		examples.WriteString("- " + q.Text)
	}

	var buf bytes.Buffer
	err := bankTmpl.Execute(&buf, bankData{
		Grade:         o.Grade,
		Chapter:       o.Chapter,
		Topic:         o.Topic,
		QuestionCount: o.QuestionCount,
		Examples:      examples.String(),
	})
	if err != nil {
		return Request{}, err
	}
	return Request{Instructions: buf.String(), Schema: ExamSchema}, nil
}
