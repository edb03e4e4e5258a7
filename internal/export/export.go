// Package export turns a generated exam into downloadable documents: a
// printable exam sheet, a solution sheet with explanations, and a Word
// file with a trailing answer key.
package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/thanhvu/examgen/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	tmplOnce sync.Once
	tmplErr  error
	docTmpl  *template.Template
)

func templates() (*template.Template, error) {
	tmplOnce.Do(func() {
		funcs := template.FuncMap{
			"inc": func(i int) int { return i + 1 },
			"label": func(i int) string {
				if i < 0 || i >= len(model.OptionLabels) {
					return "?"
				}
				return model.OptionLabels[i]
			},
		}
		docTmpl, tmplErr = template.New("docs").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	})
	return docTmpl, tmplErr
}

func renderDoc(name string, data any) (string, error) {
	t, err := templates()
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrExport, err)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrExport, err)
	}
	return buf.String(), nil
}

// ExamHTML renders the printable exam sheet: questions and options only,
// no answers and no explanations.
func ExamHTML(exam *model.Exam) (string, error) {
	return renderDoc("exam_doc", exam)
}

// SolutionHTML renders the solution sheet with the correct option marked
// and the explanation under each question.
func SolutionHTML(exam *model.Exam) (string, error) {
	return renderDoc("solution_doc", exam)
}

// WordDoc builds a self-contained HTML document that word processors open
// as a .doc file. The body is the plain-text exam followed by an answer
// key grid.
func WordDoc(exam *model.Exam) ([]byte, error) {
	var b strings.Builder
	b.WriteString(exam.Title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Thời gian làm bài: %d phút\n\n", exam.Duration)

	for i, q := range exam.Questions {
		fmt.Fprintf(&b, "Câu %d: %s\n", i+1, q.QuestionText)
		for j, opt := range q.Options {
			fmt.Fprintf(&b, "   %s. %s\n", model.OptionLabels[j], opt)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nĐÁP ÁN\n")
	b.WriteString(answerKey(exam))

	doc, err := renderDoc("word_doc", struct{ Body string }{Body: b.String()})
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// answerKey lays out "N. L" entries ten per line.
func answerKey(exam *model.Exam) string {
	var b strings.Builder
	for i, q := range exam.Questions {
		fmt.Fprintf(&b, "%d. %s", i+1, q.CorrectLabel())
		if (i+1)%10 == 0 {
			b.WriteString("\n")
		} else if i != len(exam.Questions)-1 {
			b.WriteString("  ")
		}
	}
	return b.String()
}

// BaseName derives a file-name stem from the exam title.
func BaseName(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}
