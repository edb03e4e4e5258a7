// Package handler serves the web UI: the generator forms, the interactive
// exam view, and the document downloads. All view state lives in the
// per-browser session; every page is rendered server side from it.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thanhvu/examgen/internal/bank"
	"github.com/thanhvu/examgen/internal/llm"
	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/session"
)

const sessionCookie = "examgen_session"

// Exporter produces the PDF downloads. *export.Exporter satisfies it.
type Exporter interface {
	ExamPDF(ctx context.Context, exam *model.Exam) ([]byte, error)
	SolutionPDF(ctx context.Context, exam *model.Exam) ([]byte, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	bank      *bank.Store
	generator llm.Generator
	exporter  Exporter
	sessions  *session.Manager
	config    model.Config
}

// New creates a new Handler.
func New(b *bank.Store, g llm.Generator, e Exporter, sm *session.Manager, cfg model.Config) (*Handler, error) {
	if err := loadTemplates(); err != nil {
		return nil, err
	}
	return &Handler{bank: b, generator: g, exporter: e, sessions: sm, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/", h.handleIndex)
		r.Get("/home", h.handleHome)
		r.Get("/generator/text", h.handleShowText)
		r.Get("/generator/bank", h.handleShowBank)
		r.Post("/generate/text", h.handleGenerateText)
		r.Post("/generate/bank", h.handleGenerateBank)
		r.Post("/exam/answer", h.handleAnswer)
		r.Post("/exam/submit", h.handleSubmit)
		r.Post("/theme", h.handleTheme)
		r.Get("/export/exam.pdf", h.handleExportExamPDF)
		r.Get("/export/solution.pdf", h.handleExportSolutionPDF)
		r.Get("/export/exam.doc", h.handleExportWord)
	})
}

type sessionKey struct{}

// withSession attaches the browser's session to the request context,
// creating one on first contact.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *session.Session
		if c, err := r.Cookie(sessionCookie); err == nil {
			if s, ok := h.sessions.Get(c.Value); ok {
				sess = s
			}
		}
		if sess == nil {
			id, s := h.sessions.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   h.config.SecureCookies,
			})
			sess = s
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// redirect sends the browser back into the app, honoring the base path.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.config.BasePath+path, http.StatusSeeOther)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	st := sess.State()

	d := h.newViewData(r, st)
	if st.Phase() == session.PhaseBank {
		if err := h.fillBankView(&d, st); err != nil {
			slog.Error("bank catalog load failed", "error", err)
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
	}
	h.render(w, http.StatusOK, d)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).GoHome()
	h.redirect(w, r, "/")
}

func (h *Handler) handleShowText(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).ShowText()
	h.redirect(w, r, "/")
}

func (h *Handler) handleShowBank(w http.ResponseWriter, r *http.Request) {
	sel := session.BankSelection{
		GradeID:   r.URL.Query().Get("grade"),
		ChapterID: r.URL.Query().Get("chapter"),
		TopicID:   r.URL.Query().Get("topic"),
	}
	if sel.TopicID != "" {
		if _, _, _, err := h.bank.Lookup(sel.GradeID, sel.ChapterID, sel.TopicID); err != nil {
			http.NotFound(w, r)
			return
		}
	}
	sessionFrom(r.Context()).ShowBank(sel)
	h.redirect(w, r, "/")
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).ToggleDark()
	h.redirect(w, r, "/")
}
