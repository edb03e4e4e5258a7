// Package session holds per-browser view state: which screen is shown,
// the single active exam or error, and the in-progress answers.
//
// State is an immutable value replaced wholesale on every transition; the
// Session wrapper serializes transitions behind a mutex. Exactly one
// generation request may be in flight per session, enforced structurally
// by Begin rather than by disabled form controls.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/thanhvu/examgen/internal/model"
)

// View is a navigation view selected by the user.
type View string

const (
	ViewHome View = "home"
	ViewText View = "text-generator"
	ViewBank View = "bank-generator"
)

// Phase is what is actually rendered. Loading, Error and Result take
// priority over whatever navigation view is selected underneath.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
	PhaseResult  Phase = "result"
	PhaseHome    Phase = Phase(ViewHome)
	PhaseText    Phase = Phase(ViewText)
	PhaseBank    Phase = Phase(ViewBank)
)

// ErrGenerationInFlight is returned by Begin while a generation request is
// already running.
var ErrGenerationInFlight = errors.New("a generation request is already in flight")

// Unanswered marks a question with no selected option.
const Unanswered = -1

// BankSelection is the (grade, chapter, topic) context carried into the
// bank generator from the sidebar.
type BankSelection struct {
	GradeID   string
	ChapterID string
	TopicID   string
}

// State is one session's complete view state.
type State struct {
	View      View
	Loading   bool
	Err       string
	Exam      *model.Exam
	Answers   []int
	Submitted bool
	BankSel   *BankSelection
	DarkMode  bool
	Flash     string
}

// Phase resolves the rendering priority rule.
func (st State) Phase() Phase {
	switch {
	case st.Loading:
		return PhaseLoading
	case st.Err != "":
		return PhaseError
	case st.Exam != nil:
		return PhaseResult
	default:
		return Phase(st.View)
	}
}

// Score counts the questions whose selected option matches the correct
// index. It is defined only after submission.
func (st State) Score() (int, bool) {
	if !st.Submitted || st.Exam == nil {
		return 0, false
	}
	score := 0
	for i, q := range st.Exam.Questions {
		if i < len(st.Answers) && st.Answers[i] == q.CorrectAnswerIndex {
			score++
		}
	}
	return score, true
}

// reset clears everything tied to the current generation: exam, answers,
// error, loading flag, flash, and the pending bank selection. The theme
// flag is presentation, not session content, and survives.
func (st State) reset() State {
	st.Loading = false
	st.Err = ""
	st.Exam = nil
	st.Answers = nil
	st.Submitted = false
	st.BankSel = nil
	st.Flash = ""
	return st
}

// Session serializes state transitions for one browser.
type Session struct {
	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

func newSession() *Session {
	return &Session{
		state:    State{View: ViewHome},
		lastSeen: time.Now(),
	}
}

// State returns a snapshot. The answers slice is cloned so the caller
// cannot mutate session state through it.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Answers != nil {
		st.Answers = append([]int(nil), st.Answers...)
	}
	return st
}

func (s *Session) apply(fn func(State) State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
}

// GoHome resets all session state and returns to the home view.
func (s *Session) GoHome() {
	s.apply(func(st State) State {
		st = st.reset()
		st.View = ViewHome
		return st
	})
}

// ShowText resets transient state and selects the text generator.
func (s *Session) ShowText() {
	s.apply(func(st State) State {
		st = st.reset()
		st.View = ViewText
		return st
	})
}

// ShowBank carries an initial selection into the bank generator. Any prior
// in-progress selection is discarded.
func (s *Session) ShowBank(sel BankSelection) {
	s.apply(func(st State) State {
		st = st.reset()
		st.View = ViewBank
		st.BankSel = &sel
		return st
	})
}

// Begin moves to Loading, clearing any prior exam or error. It fails if a
// generation request is already in flight.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading {
		return ErrGenerationInFlight
	}
	st := s.state
	st.Err = ""
	st.Exam = nil
	st.Answers = nil
	st.Submitted = false
	st.Flash = ""
	st.Loading = true
	s.state = st
	return nil
}

// Finish moves Loading -> Result with a fresh, unanswered exam.
func (s *Session) Finish(exam *model.Exam) {
	s.apply(func(st State) State {
		st.Loading = false
		st.Err = ""
		st.Exam = exam
		st.Answers = make([]int, len(exam.Questions))
		for i := range st.Answers {
			st.Answers[i] = Unanswered
		}
		st.Submitted = false
		return st
	})
}

// Fail moves Loading -> Error.
func (s *Session) Fail(msg string) {
	s.apply(func(st State) State {
		st.Loading = false
		st.Exam = nil
		st.Answers = nil
		st.Submitted = false
		st.Err = msg
		return st
	})
}

// Select records an answer. Selections are ignored once the exam is
// submitted or when the indices are out of range.
func (s *Session) Select(question, option int) {
	s.apply(func(st State) State {
		if st.Exam == nil || st.Submitted {
			return st
		}
		if question < 0 || question >= len(st.Answers) {
			return st
		}
		if option < 0 || option >= len(model.OptionLabels) {
			return st
		}
		answers := append([]int(nil), st.Answers...)
		answers[question] = option
		st.Answers = answers
		return st
	})
}

// Submit locks all answers. Scoring becomes defined from here on.
func (s *Session) Submit() {
	s.apply(func(st State) State {
		if st.Exam == nil {
			return st
		}
		st.Submitted = true
		return st
	})
}

// ToggleDark flips the theme flag.
func (s *Session) ToggleDark() {
	s.apply(func(st State) State {
		st.DarkMode = !st.DarkMode
		return st
	})
}

// SetFlash stores a transient notification shown on the next render.
func (s *Session) SetFlash(msg string) {
	s.apply(func(st State) State {
		st.Flash = msg
		return st
	})
}

// TakeFlash returns and clears the pending notification.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.state.Flash
	s.state.Flash = ""
	return msg
}
