package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// OptionLabels are the fixed answer labels assigned to options by position.
var OptionLabels = [4]string{"A", "B", "C", "D"}

// ExamTypes is the fixed set of exam types offered by the text generator.
var ExamTypes = []string{
	"Kiểm tra 15 phút",
	"Kiểm tra 45 phút (1 tiết)",
	"Thi học kỳ 1",
	"Thi học kỳ 2",
	"Thi thử Tốt nghiệp THPT",
}

// GradeLabels is the fixed set of grade levels.
var GradeLabels = []string{"10", "11", "12"}

const (
	// MinSourceLen is the minimum trimmed length of pasted study material.
	MinSourceLen = 100

	// MinTextQuestions and MaxQuestions bound the requested question count
	// for the text generator; the bank generator allows from 1.
	MinTextQuestions = 5
	MinBankQuestions = 1
	MaxQuestions     = 50
)

// ErrGeneration is the uniform failure for the generation path: transport
// errors, malformed responses, and empty question sets all fold into it.
var ErrGeneration = errors.New("exam generation failed")

// ErrExport is the uniform failure for the document export path.
var ErrExport = errors.New("document export failed")

// ValidationError reports a pre-flight input problem. It is shown inline
// next to the offending control and never changes the view state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Question is one multiple-choice exam item. The question text and
// explanation may embed LaTeX math markup. Immutable once created.
type Question struct {
	QuestionText       string   `json:"questionText"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// Validate checks the per-question invariants.
func (q Question) Validate() error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return errors.New("empty question text")
	}
	if len(q.Options) != len(OptionLabels) {
		return fmt.Errorf("expected %d options, got %d", len(OptionLabels), len(q.Options))
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		return fmt.Errorf("correct answer index %d out of range", q.CorrectAnswerIndex)
	}
	return nil
}

// CorrectLabel returns the A-D label of the correct option.
func (q Question) CorrectLabel() string {
	return OptionLabels[q.CorrectAnswerIndex]
}

// Exam is one generated exam. It is created atomically from a single
// generation response and lives only inside the session that produced it.
type Exam struct {
	Title     string     `json:"examTitle"`
	Duration  int        `json:"duration"`
	Questions []Question `json:"questions"`
}

// Validate checks the exam invariants. An empty question set is a failure,
// never a valid exam.
func (e Exam) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("empty exam title")
	}
	if e.Duration <= 0 {
		return fmt.Errorf("non-positive duration %d", e.Duration)
	}
	if len(e.Questions) == 0 {
		return errors.New("empty question set")
	}
	for i, q := range e.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// BankQuestion is a sample item from the static catalog. Its ID is unique
// within the owning topic.
type BankQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Topic groups the sample questions for one lesson.
type Topic struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Questions []BankQuestion `json:"questions"`
}

// Chapter groups the topics of one textbook chapter.
type Chapter struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Grade is the top level of the catalog hierarchy.
type Grade struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters"`
}

// TextOptions are the parameters for generating an exam from pasted study
// material.
type TextOptions struct {
	SourceText    string
	ExamType      string
	QuestionCount int
	Grade         string
}

// Validate enforces the pre-flight rules for the text path.
func (o TextOptions) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(o.SourceText)) < MinSourceLen {
		return &ValidationError{Field: "sourceText", Message: "source material too short"}
	}
	if !contains(ExamTypes, o.ExamType) {
		return &ValidationError{Field: "examType", Message: "unknown exam type"}
	}
	if o.QuestionCount < MinTextQuestions || o.QuestionCount > MaxQuestions {
		return &ValidationError{
			Field:   "questionCount",
			Message: fmt.Sprintf("question count must be between %d and %d", MinTextQuestions, MaxQuestions),
		}
	}
	if !contains(GradeLabels, o.Grade) {
		return &ValidationError{Field: "grade", Message: "unknown grade"}
	}
	return nil
}

// BankOptions are the parameters for generating an exam from selected
// catalog questions. The base questions are referenced, never owned.
type BankOptions struct {
	BaseQuestions []BankQuestion
	QuestionCount int
	Grade         string
	Chapter       string
	Topic         string
}

// Validate enforces the pre-flight rules for the bank path.
func (o BankOptions) Validate() error {
	if len(o.BaseQuestions) == 0 {
		return &ValidationError{Field: "baseQuestions", Message: "no questions selected"}
	}
	if o.QuestionCount < MinBankQuestions || o.QuestionCount > MaxQuestions {
		return &ValidationError{
			Field:   "questionCount",
			Message: fmt.Sprintf("question count must be between %d and %d", MinBankQuestions, MaxQuestions),
		}
	}
	return nil
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	BasePath        string // URL prefix for sub-path deployments (e.g. "/toan")
	SecureCookies   bool   // Set Secure flag on cookies (disable for local dev)
	GenerateTimeout time.Duration
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
