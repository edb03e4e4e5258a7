package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thanhvu/examgen/internal/export"
	"github.com/thanhvu/examgen/internal/i18n"
	"github.com/thanhvu/examgen/internal/model"
)

// currentExam returns the session's exam, or nil after sending a 404.
func (h *Handler) currentExam(w http.ResponseWriter, r *http.Request) *model.Exam {
	st := sessionFrom(r.Context()).State()
	if st.Exam == nil {
		http.NotFound(w, r)
		return nil
	}
	return st.Exam
}

// exportFailed flashes a translated message and sends the browser back to
// the result view. The exam on screen is untouched.
func (h *Handler) exportFailed(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("export failed", "error", err)
	sessionFrom(r.Context()).SetFlash(i18n.T(r.Context(), "error.export"))
	h.redirect(w, r, "/")
}

func sendAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.Write(body)
}

func (h *Handler) handleExportExamPDF(w http.ResponseWriter, r *http.Request) {
	exam := h.currentExam(w, r)
	if exam == nil {
		return
	}
	pdf, err := h.exporter.ExamPDF(r.Context(), exam)
	if err != nil {
		h.exportFailed(w, r, err)
		return
	}
	sendAttachment(w, "application/pdf", export.BaseName(exam.Title)+"_DeGoc.pdf", pdf)
}

func (h *Handler) handleExportSolutionPDF(w http.ResponseWriter, r *http.Request) {
	exam := h.currentExam(w, r)
	if exam == nil {
		return
	}
	pdf, err := h.exporter.SolutionPDF(r.Context(), exam)
	if err != nil {
		h.exportFailed(w, r, err)
		return
	}
	sendAttachment(w, "application/pdf", export.BaseName(exam.Title)+"_LoiGiai.pdf", pdf)
}

func (h *Handler) handleExportWord(w http.ResponseWriter, r *http.Request) {
	exam := h.currentExam(w, r)
	if exam == nil {
		return
	}
	doc, err := export.WordDoc(exam)
	if err != nil {
		h.exportFailed(w, r, err)
		return
	}
	sendAttachment(w, "application/msword", export.BaseName(exam.Title)+".doc", doc)
}
