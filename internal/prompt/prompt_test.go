package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/thanhvu/examgen/internal/model"
)

func TestBuildTextRequest(t *testing.T) {
	o := model.TextOptions{
		SourceText:    "Sự đồng biến, nghịch biến của hàm số. Định lý về dấu của đạo hàm và bảng biến thiên của hàm số bậc ba.",
		ExamType:      "Kiểm tra 15 phút",
		QuestionCount: 10,
		Grade:         "12",
	}

	req, err := BuildTextRequest(o)
	if err != nil {
		t.Fatalf("BuildTextRequest: %v", err)
	}

	for _, want := range []string{
		"Toán 12",
		"Kiểm tra 15 phút",
		"10",
		"Vietnamese",
		o.SourceText,
		"range of difficulties",
		"single JSON object",
	} {
		if !strings.Contains(req.Instructions, want) {
			t.Errorf("instructions should contain %q", want)
		}
	}
	if req.Schema == nil {
		t.Error("request should carry the response schema")
	}
}

func TestBuildBankRequest(t *testing.T) {
	o := model.BankOptions{
		BaseQuestions: []model.BankQuestion{
			{ID: "q1", Text: "Cho hàm số $y = x^3 - 3x^2$. Mệnh đề nào dưới đây đúng?"},
			{ID: "q2", Text: "Tìm các khoảng nghịch biến của hàm số $y = -x^4 + 2x^2 + 1$."},
		},
		QuestionCount: 5,
		Grade:         "12",
		Chapter:       "Chương I: Ứng dụng đạo hàm để khảo sát và vẽ đồ thị của hàm số",
		Topic:         "Bài 1: Sự đồng biến, nghịch biến của hàm số",
	}

	req, err := BuildBankRequest(o)
	if err != nil {
		t.Fatalf("BuildBankRequest: %v", err)
	}

	for _, q := range o.BaseQuestions {
		if !strings.Contains(req.Instructions, "- "+q.Text) {
			t.Errorf("instructions should enumerate example %q", q.ID)
		}
	}
	for _, want := range []string{
		"Grade 12",
		o.Chapter,
		"new, unique multiple-choice questions",
		"Do not simply copy the examples",
		"Đề ôn tập - " + o.Topic,
	} {
		if !strings.Contains(req.Instructions, want) {
			t.Errorf("instructions should contain %q", want)
		}
	}
}

func TestSchemaShape(t *testing.T) {
	req := Request{Schema: ExamSchema}

	raw := req.SchemaJSON()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("SchemaJSON is not valid JSON: %v", err)
	}

	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema should declare properties")
	}
	for _, field := range []string{"examTitle", "duration", "questions"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema should declare %q", field)
		}
	}

	questions := props["questions"].(map[string]any)
	items := questions["items"].(map[string]any)
	qProps := items["properties"].(map[string]any)
	for _, field := range []string{"questionText", "options", "correctAnswerIndex", "explanation"} {
		if _, ok := qProps[field]; !ok {
			t.Errorf("question schema should declare %q", field)
		}
	}
}
