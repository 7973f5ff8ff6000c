package session

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Question is one multiple-choice item, generated or user-supplied.
// Immutable once created; owned by the session for its lifetime.
type Question struct {
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Section       string   `json:"section"`
	Topic         string   `json:"topic"`
}

// Validate checks the structural rules every question must satisfy:
// all fields present, exactly 4 unique options, correct answer among them.
func (q Question) Validate() error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return ErrMalformedQuestion
	}
	if len(q.Options) != 4 {
		return ErrMalformedQuestion
	}
	seen := make(map[string]bool, 4)
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" || seen[opt] {
			return ErrMalformedQuestion
		}
		seen[opt] = true
	}
	if !seen[q.CorrectAnswer] {
		return ErrMalformedQuestion
	}
	if strings.TrimSpace(q.Section) == "" || strings.TrimSpace(q.Topic) == "" {
		return ErrMalformedQuestion
	}
	return nil
}

// AnsweredQuestion is a Question plus the option the user picked.
type AnsweredQuestion struct {
	Question
	UserAnswer string `json:"user_answer"`
}

func (a AnsweredQuestion) IsCorrect() bool {
	return a.UserAnswer == a.CorrectAnswer
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session is the single mutable state object for one quiz attempt.
// All mutation goes through its methods; the mutex serializes user
// operations against the ambient timer tick.
type Session struct {
	mu sync.Mutex

	code       string
	mode       string // "ai" or "manual"
	gradeLevel string
	difficulty string

	questions []Question
	current   int
	score     int
	answered  []AnsweredQuestion

	timeLimit int // configured total, seconds
	remaining int
	startTime time.Time
	status    Status
}

func newSession(code, mode, gradeLevel, difficulty string, questions []Question, timeLimitSeconds int) *Session {
	return &Session{
		code:       code,
		mode:       mode,
		gradeLevel: gradeLevel,
		difficulty: difficulty,
		questions:  questions,
		answered:   make([]AnsweredQuestion, 0, len(questions)),
		timeLimit:  timeLimitSeconds,
		remaining:  timeLimitSeconds,
		startTime:  time.Now(),
		status:     StatusInProgress,
	}
}

func (s *Session) Code() string { return s.code }

// QuestionView is one question as presented to the client: options are
// freshly shuffled per presentation and the correct answer is withheld.
type QuestionView struct {
	Index        int      `json:"index"`
	Total        int      `json:"total"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	Section      string   `json:"section"`
	Topic        string   `json:"topic"`
}

// CurrentQuestion renders the question at the current index. Each call
// re-shuffles the options; grading is by option text, so presentation
// order never affects correctness.
func (s *Session) CurrentQuestion() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress || s.current >= len(s.questions) {
		return QuestionView{}, ErrSessionCompleted
	}

	q := s.questions[s.current]
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	rand.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})

	return QuestionView{
		Index:        s.current,
		Total:        len(s.questions),
		QuestionText: q.QuestionText,
		Options:      opts,
		Section:      q.Section,
		Topic:        q.Topic,
	}, nil
}

// AnswerResult is the graded outcome of one submission, exposed before
// the session advances so the client can render feedback.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Score         int    `json:"score"`
	LastQuestion  bool   `json:"last_question"`
}

// SubmitAnswer records the selected option for the current question and
// grades it. Advancing to the next question is a separate explicit step.
func (s *Session) SubmitAnswer(selected string) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return AnswerResult{}, ErrSessionCompleted
	}
	if s.current >= len(s.questions) {
		return AnswerResult{}, ErrSessionCompleted
	}
	if len(s.answered) > s.current {
		return AnswerResult{}, ErrAlreadyAnswered
	}

	q := s.questions[s.current]
	s.answered = append(s.answered, AnsweredQuestion{Question: q, UserAnswer: selected})

	correct := selected == q.CorrectAnswer
	if correct {
		s.score++
	}

	return AnswerResult{
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Score:         s.score,
		LastQuestion:  s.current+1 == len(s.questions),
	}, nil
}

// Advance moves to the next question, or completes the session when the
// just-answered question was the last one. The current question must have
// been answered first.
func (s *Session) Advance() (completed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return false, ErrSessionCompleted
	}
	if len(s.answered) != s.current+1 {
		return false, ErrAnswerRequired
	}

	s.current++
	if s.current >= len(s.questions) {
		s.status = StatusCompleted
		return true, nil
	}
	return false, nil
}

// Tick decrements the countdown by one second. When it reaches zero the
// session is forced to completed; answers recorded so far are preserved
// and unanswered questions are simply absent from the answered list.
func (s *Session) Tick() (remaining int, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return s.remaining, false
	}

	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.status = StatusCompleted
		return 0, true
	}
	return s.remaining, false
}

// EndEarly completes the session immediately, preserving state as-is.
func (s *Session) EndEarly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
}

// IncorrectQuestions returns the questions the user got wrong, stripped
// of their answers, in answer order. Only meaningful once completed.
func (s *Session) IncorrectQuestions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Question
	for _, a := range s.answered {
		if !a.IsCorrect() {
			out = append(out, a.Question)
		}
	}
	return out
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot is a read-only copy of the session state for display.
type Snapshot struct {
	Code          string             `json:"session"`
	Mode          string             `json:"mode"`
	Status        Status             `json:"status"`
	CurrentIndex  int                `json:"current_index"`
	Total         int                `json:"total"`
	Score         int                `json:"score"`
	TimeRemaining int                `json:"time_remaining_seconds"`
	Answered      []AnsweredQuestion `json:"answered"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := make([]AnsweredQuestion, len(s.answered))
	copy(answered, s.answered)

	return Snapshot{
		Code:          s.code,
		Mode:          s.mode,
		Status:        s.status,
		CurrentIndex:  s.current,
		Total:         len(s.questions),
		Score:         s.score,
		TimeRemaining: s.remaining,
		Answered:      answered,
	}
}

// Summary is the finalized result of a completed session, in the shape
// the persistence layer and the results screen consume.
type Summary struct {
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	Percentage     int                `json:"percentage"`
	TimeTaken      string             `json:"time_taken"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	Mode           string             `json:"mode"`
	Sections       string             `json:"sections"`
	GradeLevel     string             `json:"grade_level"`
	Difficulty     string             `json:"difficulty"`
	Answered       []AnsweredQuestion `json:"questions"`
}

// Summary finalizes the session results. TimeTaken is the configured
// limit minus the remaining countdown, formatted M:SS; ElapsedSeconds is
// wall-clock time since the session started.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := make([]AnsweredQuestion, len(s.answered))
	copy(answered, s.answered)

	taken := s.timeLimit - s.remaining
	if taken < 0 {
		taken = 0
	}

	return Summary{
		Score:          s.score,
		TotalQuestions: len(s.questions),
		Percentage:     Percentage(s.score, len(s.questions)),
		TimeTaken:      FormatDuration(taken),
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		Mode:           s.mode,
		Sections:       sectionList(s.questions),
		GradeLevel:     s.gradeLevel,
		Difficulty:     s.difficulty,
		Answered:       answered,
	}
}

// Percentage is the integer score percentage, rounded half away from
// zero. Zero questions yields zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// sectionList joins the distinct section names in first-seen order.
func sectionList(questions []Question) string {
	seen := make(map[string]bool)
	var parts []string
	for _, q := range questions {
		if q.Section == "" || seen[q.Section] {
			continue
		}
		seen[q.Section] = true
		parts = append(parts, q.Section)
	}
	return strings.Join(parts, ", ")
}
