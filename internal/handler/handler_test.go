package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thanhvu/examgen/internal/bank"
	"github.com/thanhvu/examgen/internal/i18n"
	"github.com/thanhvu/examgen/internal/model"
	"github.com/thanhvu/examgen/internal/prompt"
	"github.com/thanhvu/examgen/internal/session"
)

type fakeGenerator struct {
	calls atomic.Int32
	exam  *model.Exam
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, req prompt.Request) (*model.Exam, error) {
	f.calls.Add(1)
	return f.exam, f.err
}

type fakeExporter struct {
	pdf []byte
	err error
}

func (f *fakeExporter) ExamPDF(ctx context.Context, exam *model.Exam) ([]byte, error) {
	return f.pdf, f.err
}

func (f *fakeExporter) SolutionPDF(ctx context.Context, exam *model.Exam) ([]byte, error) {
	return f.pdf, f.err
}

func twoQuestionExam() *model.Exam {
	return &model.Exam{
		Title:    "Đề kiểm tra thử",
		Duration: 15,
		Questions: []model.Question{
			{
				QuestionText:       "Tính $2+2$",
				Options:            []string{"3", "4", "5", "6"},
				CorrectAnswerIndex: 1,
				Explanation:        "Cộng trực tiếp.",
			},
			{
				QuestionText:       "Tính $3 \\cdot 3$",
				Options:            []string{"6", "7", "8", "9"},
				CorrectAnswerIndex: 3,
				Explanation:        "Nhân trực tiếp.",
			},
		},
	}
}

type testApp struct {
	srv       *httptest.Server
	client    *http.Client
	generator *fakeGenerator
	exporter  *fakeExporter
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	if err := i18n.Init(i18n.DefaultLang); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	store, err := bank.New(":memory:")
	if err != nil {
		t.Fatalf("bank.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gen := &fakeGenerator{exam: twoQuestionExam()}
	exp := &fakeExporter{pdf: []byte("%PDF-1.4 fake")}
	h, err := New(store, gen, exp, session.NewManager(time.Hour), model.Config{
		GenerateTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(i18n.Middleware(i18n.DefaultLang))
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testApp{
		srv:       srv,
		client:    &http.Client{Jar: jar},
		generator: gen,
		exporter:  exp,
	}
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.PostForm(a.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	return resp, readBody(t, resp)
}

// waitForPhase polls the index until the loading page is gone.
func (a *testApp) waitForPhase(t *testing.T, marker string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body := a.get(t, "/")
		if strings.Contains(body, marker) {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("index never reached state containing %q", marker)
	return ""
}

func validTextForm() url.Values {
	return url.Values{
		"sourceText":    {strings.Repeat("Hàm số bậc ba và đạo hàm. ", 10)},
		"examType":      {"Kiểm tra 15 phút"},
		"grade":         {"12"},
		"questionCount": {"10"},
	}
}

func TestHomePage(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Tạo đề thi trắc nghiệm Toán bằng AI") {
		t.Error("home heading missing")
	}
}

func TestGenerateTextRejectsShortSource(t *testing.T) {
	app := newTestApp(t)

	form := validTextForm()
	form.Set("sourceText", "quá ngắn")
	resp, body := app.post(t, "/generate/text", form)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "Nội dung quá ngắn") {
		t.Error("inline validation message missing")
	}
	if !strings.Contains(body, "quá ngắn") {
		t.Error("form should stay sticky")
	}
	if app.generator.calls.Load() != 0 {
		t.Error("generator must not be invoked on validation failure")
	}
}

func TestGenerateTextRejectsBadCount(t *testing.T) {
	app := newTestApp(t)

	form := validTextForm()
	form.Set("questionCount", "3")
	resp, body := app.post(t, "/generate/text", form)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "Số câu hỏi phải từ 5 đến 50") {
		t.Error("count validation message missing")
	}
	if app.generator.calls.Load() != 0 {
		t.Error("generator must not be invoked on validation failure")
	}
}

func TestGenerateTextFlow(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/text", validTextForm())
	body := app.waitForPhase(t, "Đề kiểm tra thử")

	if !strings.Contains(body, "Câu 1:") || !strings.Contains(body, "Câu 2:") {
		t.Error("result view should list the questions")
	}
	if strings.Contains(body, "Giải thích") {
		t.Error("explanations must stay hidden before submission")
	}
	if app.generator.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", app.generator.calls.Load())
	}
}

func TestGenerateFailureShowsErrorView(t *testing.T) {
	app := newTestApp(t)
	app.generator.exam = nil
	app.generator.err = fmt.Errorf("%w: upstream exploded", model.ErrGeneration)

	app.post(t, "/generate/text", validTextForm())
	body := app.waitForPhase(t, "Không tạo được đề thi")

	if !strings.Contains(body, "Đã xảy ra lỗi khi tạo đề thi") {
		t.Error("generic failure message missing")
	}
	if strings.Contains(body, "upstream exploded") {
		t.Error("provider detail must not leak to the page")
	}
}

func TestGenerateBankRejectsEmptySelection(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.post(t, "/generate/bank", url.Values{
		"grade":         {"grade-12"},
		"chapter":       {"g12-c1"},
		"topic":         {"g12-c1-t1"},
		"questionCount": {"10"},
	})

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "Hãy chọn ít nhất một bài học") {
		t.Error("selection validation message missing")
	}
	if app.generator.calls.Load() != 0 {
		t.Error("generator must not be invoked on validation failure")
	}
}

func TestGenerateBankFlow(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/bank", url.Values{
		"grade":         {"grade-12"},
		"chapter":       {"g12-c1"},
		"topic":         {"g12-c1-t1"},
		"questions":     {"g12c1t1q1", "g12c1t1q2"},
		"questionCount": {"10"},
	})
	app.waitForPhase(t, "Đề kiểm tra thử")

	if app.generator.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", app.generator.calls.Load())
	}
}

func TestBankGeneratorPage(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/generator/bank?grade=grade-12&chapter=g12-c1&topic=g12-c1-t1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Bài 1: Sự đồng biến, nghịch biến của hàm số") {
		t.Error("selected topic name missing")
	}
	if !strings.Contains(body, "g12c1t1q1") {
		t.Error("sample question checkboxes missing")
	}
}

func TestBankGeneratorUnknownTopic(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/generator/bank?grade=grade-12&chapter=g12-c1&topic=nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAnswerSubmitScoring(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/text", validTextForm())
	app.waitForPhase(t, "Đề kiểm tra thử")

	// Correct answer for question 0, wrong for question 1.
	app.post(t, "/exam/answer", url.Values{"question": {"0"}, "option": {"1"}})
	app.post(t, "/exam/answer", url.Values{"question": {"1"}, "option": {"0"}})
	_, body := app.post(t, "/exam/submit", nil)

	if !strings.Contains(body, "Kết quả: 1/2 câu đúng") {
		t.Error("score line missing or wrong")
	}
	if !strings.Contains(body, "Giải thích") {
		t.Error("explanations should appear after submission")
	}

	// Selections are locked after submission.
	_, body = app.post(t, "/exam/answer", url.Values{"question": {"1"}, "option": {"3"}})
	if !strings.Contains(body, "Kết quả: 1/2 câu đúng") {
		t.Error("score must not change after submission")
	}
}

func TestHomeResetsExam(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/text", validTextForm())
	app.waitForPhase(t, "Đề kiểm tra thử")

	_, body := app.get(t, "/home")
	if strings.Contains(body, "Đề kiểm tra thử") {
		t.Error("home must discard the current exam")
	}
}

func TestExportWithoutExam(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.get(t, "/export/exam.pdf")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExportPDF(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/text", validTextForm())
	app.waitForPhase(t, "Đề kiểm tra thử")

	resp, body := app.get(t, "/export/exam.pdf")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Đề_kiểm_tra_thử_DeGoc.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(body, "%PDF") {
		t.Error("body is not the PDF payload")
	}
}

func TestExportWord(t *testing.T) {
	app := newTestApp(t)

	app.post(t, "/generate/text", validTextForm())
	app.waitForPhase(t, "Đề kiểm tra thử")

	resp, body := app.get(t, "/export/exam.doc")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/msword" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(body, "ĐÁP ÁN") {
		t.Error("answer key missing from Word export")
	}
}

func TestExportFailureFlashes(t *testing.T) {
	app := newTestApp(t)
	app.exporter.err = errors.New("render service down")

	app.post(t, "/generate/text", validTextForm())
	app.waitForPhase(t, "Đề kiểm tra thử")

	_, body := app.get(t, "/export/exam.pdf")
	if !strings.Contains(body, "Không xuất được tệp") {
		t.Error("flash message missing after export failure")
	}
	if !strings.Contains(body, "Đề kiểm tra thử") {
		t.Error("exam must survive a failed export")
	}

	// Flash shows once.
	_, body = app.get(t, "/")
	if strings.Contains(body, "Không xuất được tệp") {
		t.Error("flash must clear after one render")
	}
}

func TestThemeToggle(t *testing.T) {
	app := newTestApp(t)

	_, body := app.post(t, "/theme", nil)
	if !strings.Contains(body, `class="dark"`) {
		t.Error("dark class missing after toggle")
	}

	// Theme survives a reset.
	_, body = app.get(t, "/home")
	if !strings.Contains(body, `class="dark"`) {
		t.Error("theme must survive navigation resets")
	}
}
