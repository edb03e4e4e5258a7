package handler

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"github.com/thanhvu/examgen/internal/i18n"
	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	tmplOnce sync.Once
	tmplErr  error
	pageTmpl *template.Template
)

func loadTemplates() error {
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
		pageTmpl, tmplErr = template.New("pages").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	})
	return tmplErr
}

// bankView is the catalog context rendered in the bank generator: the
// selected hierarchy plus the sample questions of the chosen topic.
type bankView struct {
	GradeID     string
	ChapterID   string
	TopicID     string
	GradeName   string
	ChapterName string
	TopicName   string
	Questions   []model.BankQuestion
}

// viewData is everything the page templates can reach.
type viewData struct {
	ctx context.Context

	BasePath  string
	State     session.State
	Phase     session.Phase
	Flash     string
	ExamTypes []string
	Grades    []string
	Catalog   []model.Grade
	Bank      *bankView

	// Sticky form values and per-field validation messages, keyed by
	// form field name.
	Form   map[string]string
	Errors map[string]string
}

// T translates a message ID in the request's locale.
func (d viewData) T(id string) string {
	return i18n.T(d.ctx, id)
}

// ScoreLine is the translated "7/10 correct" line, empty before submission.
func (d viewData) ScoreLine() string {
	score, ok := d.State.Score()
	if !ok {
		return ""
	}
	return i18n.Td(d.ctx, "result.score", map[string]any{
		"Score": score,
		"Total": len(d.State.Exam.Questions),
	})
}

// DurationLine is the translated exam duration line.
func (d viewData) DurationLine() string {
	if d.State.Exam == nil {
		return ""
	}
	return i18n.Td(d.ctx, "result.duration", map[string]any{"Minutes": d.State.Exam.Duration})
}

// Answer returns the selected option for question i, or -1.
func (d viewData) Answer(i int) int {
	if i < 0 || i >= len(d.State.Answers) {
		return session.Unanswered
	}
	return d.State.Answers[i]
}

func (h *Handler) newViewData(r *http.Request, st session.State) viewData {
	return viewData{
		ctx:       r.Context(),
		BasePath:  h.config.BasePath,
		State:     st,
		Phase:     st.Phase(),
		Flash:     sessionFrom(r.Context()).TakeFlash(),
		ExamTypes: model.ExamTypes,
		Grades:    model.GradeLabels,
		Form:      map[string]string{},
		Errors:    map[string]string{},
	}
}

// fillBankView loads the catalog and, when a topic is selected, its
// hierarchy names and sample questions.
func (h *Handler) fillBankView(d *viewData, st session.State) error {
	catalog, err := h.bank.Catalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	d.Catalog = catalog

	bv := &bankView{}
	if st.BankSel != nil {
		bv.GradeID = st.BankSel.GradeID
		bv.ChapterID = st.BankSel.ChapterID
		bv.TopicID = st.BankSel.TopicID
	}
	d.Bank = bv
	if bv.TopicID == "" {
		return nil
	}
	bv.GradeName, bv.ChapterName, bv.TopicName, err = h.bank.Lookup(bv.GradeID, bv.ChapterID, bv.TopicID)
	if err != nil {
		return fmt.Errorf("lookup topic %s: %w", bv.TopicID, err)
	}
	bv.Questions, err = h.bank.Questions(bv.TopicID)
	if err != nil {
		return fmt.Errorf("load topic questions: %w", err)
	}
	return nil
}

func (h *Handler) render(w http.ResponseWriter, status int, d viewData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.ExecuteTemplate(w, "layout", d); err != nil {
		slog.Error("render error", "error", err)
	}
}
