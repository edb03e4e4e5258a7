package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/thanhvu/examgen/internal/i18n"
	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/prompt"
	"github.com/thanhvu/examgen/internal/session"
)

func (h *Handler) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, _ := strconv.Atoi(r.FormValue("questionCount"))
	opts := model.TextOptions{
		SourceText:    r.FormValue("sourceText"),
		ExamType:      r.FormValue("examType"),
		QuestionCount: count,
		Grade:         r.FormValue("grade"),
	}

	if err := opts.Validate(); err != nil {
		sess := sessionFrom(r.Context())
		d := h.newViewData(r, sess.State())
		d.Phase = session.PhaseText
		d.Form = map[string]string{
			"sourceText":    opts.SourceText,
			"examType":      opts.ExamType,
			"questionCount": r.FormValue("questionCount"),
			"grade":         opts.Grade,
		}
		setFieldError(r.Context(), d.Errors, err, model.MinTextQuestions)
		h.render(w, http.StatusUnprocessableEntity, d)
		return
	}

	req, err := prompt.BuildTextRequest(opts)
	if err != nil {
		slog.Error("prompt build failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.generate(w, r, req)
}

func (h *Handler) handleGenerateBank(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gradeID := r.FormValue("grade")
	chapterID := r.FormValue("chapter")
	topicID := r.FormValue("topic")
	count, _ := strconv.Atoi(r.FormValue("questionCount"))

	opts := model.BankOptions{QuestionCount: count}
	gradeName, chapterName, topicName, err := h.bank.Lookup(gradeID, chapterID, topicID)
	if err == nil {
		opts.Grade = gradeName
		opts.Chapter = chapterName
		opts.Topic = topicName
		opts.BaseQuestions, err = h.bank.QuestionsByID(topicID, r.Form["questions"])
		if err != nil {
			slog.Error("bank question load failed", "error", err)
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
	}

	if verr := opts.Validate(); verr != nil {
		sel := session.BankSelection{GradeID: gradeID, ChapterID: chapterID, TopicID: topicID}
		if err != nil {
			// Unknown hierarchy: re-render with nothing selected.
			sel = session.BankSelection{}
		}
		sess := sessionFrom(r.Context())
		sess.ShowBank(sel)
		d := h.newViewData(r, sess.State())
		if ferr := h.fillBankView(&d, sess.State()); ferr != nil {
			slog.Error("bank catalog load failed", "error", ferr)
			http.Error(w, "catalog unavailable", http.StatusInternalServerError)
			return
		}
		d.Form["questionCount"] = r.FormValue("questionCount")
		setFieldError(r.Context(), d.Errors, verr, model.MinBankQuestions)
		h.render(w, http.StatusUnprocessableEntity, d)
		return
	}

	req, err := prompt.BuildBankRequest(opts)
	if err != nil {
		slog.Error("prompt build failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.generate(w, r, req)
}

// generate starts the asynchronous generation request and sends the
// browser back to the index, which shows the loading page until the
// session leaves the Loading phase. The failure message is resolved in
// the request's locale before the request context is gone.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request, req prompt.Request) {
	sess := sessionFrom(r.Context())
	failMsg := i18n.T(r.Context(), "error.generation")

	if err := sess.Begin(); err != nil {
		h.redirect(w, r, "/")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.GenerateTimeout)
		defer cancel()

		exam, err := h.generator.Generate(ctx, req)
		if err != nil {
			slog.Error("generation failed", "error", err)
			sess.Fail(failMsg)
			return
		}
		slog.Info("exam generated", "title", exam.Title, "questions", len(exam.Questions))
		sess.Finish(exam)
	}()

	h.redirect(w, r, "/")
}

// setFieldError maps a validation failure to a translated inline message.
func setFieldError(ctx context.Context, dst map[string]string, err error, minCount int) {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		dst["form"] = err.Error()
		return
	}
	switch ve.Field {
	case "sourceText":
		dst[ve.Field] = i18n.Td(ctx, "validation.sourceTooShort", map[string]any{"Min": model.MinSourceLen})
	case "questionCount":
		dst[ve.Field] = i18n.Td(ctx, "validation.countRange", map[string]any{"Min": minCount, "Max": model.MaxQuestions})
	case "examType":
		dst[ve.Field] = i18n.T(ctx, "validation.examType")
	case "grade":
		dst[ve.Field] = i18n.T(ctx, "validation.grade")
	case "baseQuestions":
		dst[ve.Field] = i18n.T(ctx, "validation.noSelection")
	default:
		dst[ve.Field] = ve.Message
	}
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	question, qerr := strconv.Atoi(r.FormValue("question"))
	option, oerr := strconv.Atoi(r.FormValue("option"))
	if qerr != nil || oerr != nil {
		http.Error(w, "invalid answer", http.StatusBadRequest)
		return
	}
	sessionFrom(r.Context()).Select(question, option)
	h.redirect(w, r, "/")
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Submit()
	h.redirect(w, r, "/")
}
