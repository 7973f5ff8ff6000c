package quiz

import (
	"context"
	"fmt"
	"log"

	"eduquiz/internal/generator"
	"eduquiz/internal/models"
	"eduquiz/internal/session"
)

// QuestionSource produces quiz questions and follow-up explanations.
// Implemented by the generator client.
type QuestionSource interface {
	Generate(ctx context.Context, req generator.Request) ([]session.Question, error)
	AskExplanation(ctx context.Context, questionText, explanation, userQuery, apiKey string) (string, error)
}

// SettingsProvider is the slice of the settings service the quiz flow
// reads at start time.
type SettingsProvider interface {
	APIKey(provider string) (string, error)
	TimeLimitSeconds() (int, error)
}

// Store persists completed quiz records.
type Store interface {
	SaveQuiz(*models.QuizRecord) error
	GetQuizzes(HistoryFilter) ([]models.QuizRecord, error)
	GetQuizByID(uint) (*models.QuizRecord, error)
}

type Service struct {
	manager  *session.Manager
	source   QuestionSource
	settings SettingsProvider
	store    Store
	events   session.EventSink
}

func NewService(manager *session.Manager, source QuestionSource, settings SettingsProvider, store Store, events session.EventSink) *Service {
	return &Service{
		manager:  manager,
		source:   source,
		settings: settings,
		store:    store,
		events:   events,
	}
}

// StartGenerated runs the full generated-mode start: resolve the
// credential, call the question source, install the session. The
// manager's attempt counter guards against overlapping starts and late
// results.
func (s *Service) StartGenerated(ctx context.Context, req *models.StartQuizRequest) (*session.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.APIProvider == "" {
		req.APIProvider = "gemini"
	}

	apiKey := req.APIKey
	if apiKey == "" {
		stored, err := s.settings.APIKey(req.APIProvider)
		if err != nil {
			return nil, err
		}
		apiKey = stored
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w for provider %q", session.ErrMissingCredential, req.APIProvider)
	}

	attempt, err := s.manager.Begin()
	if err != nil {
		return nil, err
	}

	timeLimit, err := s.settings.TimeLimitSeconds()
	if err != nil {
		s.manager.Abort(attempt)
		return nil, err
	}

	questions, err := s.source.Generate(ctx, generator.Request{
		Topics:       req.Topics,
		NumQuestions: req.NumQuestions,
		Provider:     req.APIProvider,
		APIKey:       apiKey,
		GradeLevel:   req.GradeLevel,
		Difficulty:   req.Difficulty,
	})
	if err != nil {
		s.manager.Abort(attempt)
		return nil, err
	}

	return s.manager.Install(attempt, "ai", req.GradeLevel, req.Difficulty, questions, timeLimit)
}

// StartManual creates a session from a user-supplied question list.
func (s *Service) StartManual(req *models.ManualStartRequest) (*session.Session, error) {
	if req.GradeLevel == "" {
		req.GradeLevel = "high school"
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	timeLimit, err := s.settings.TimeLimitSeconds()
	if err != nil {
		return nil, err
	}
	return s.manager.StartManual(req.GradeLevel, req.Difficulty, req.Questions, timeLimit)
}

func (s *Service) Session(code string) (*session.Session, error) {
	return s.manager.Get(code)
}

// Advance moves the session to its next question, emitting the
// completion event and summary when the last question is behind it.
func (s *Service) Advance(sess *session.Session) (*models.AdvanceResponse, error) {
	completed, err := sess.Advance()
	if err != nil {
		return nil, err
	}
	if completed {
		summary := sess.Summary()
		if s.events != nil {
			s.events.SessionEvent(sess.Code(), "completed", summary)
		}
		return &models.AdvanceResponse{Completed: true, Summary: &summary}, nil
	}

	view, err := sess.CurrentQuestion()
	if err != nil {
		return nil, err
	}
	return &models.AdvanceResponse{Question: &view}, nil
}

// End completes the session immediately and returns its summary.
func (s *Service) End(sess *session.Session) (*session.Summary, error) {
	if sess.Status() != session.StatusInProgress {
		return nil, session.ErrSessionCompleted
	}
	sess.EndEarly()

	summary := sess.Summary()
	if s.events != nil {
		s.events.SessionEvent(sess.Code(), "completed", summary)
	}
	return &summary, nil
}

// Save persists a completed session's record. Repeated saves produce
// independent records; no dedup is attempted.
func (s *Service) Save(sess *session.Session) (uint, error) {
	if sess.Status() != session.StatusCompleted {
		return 0, session.ErrSessionActive
	}

	record := models.NewQuizRecord(sess.Summary())
	if err := s.store.SaveQuiz(record); err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
	}
	return record.ID, nil
}

// Retry re-seeds a fresh session from a completed one's incorrect
// answers, with a fresh countdown from the configured limit.
func (s *Service) Retry(code string) (*session.Session, error) {
	timeLimit, err := s.settings.TimeLimitSeconds()
	if err != nil {
		return nil, err
	}
	return s.manager.Retry(code, timeLimit)
}

// Reset discards a session unconditionally.
func (s *Service) Reset(code string) {
	s.manager.Remove(code)
}

func (s *Service) History(filter HistoryFilter) ([]models.QuizRecord, error) {
	return s.store.GetQuizzes(filter)
}

func (s *Service) GetQuiz(id uint) (*models.QuizRecord, error) {
	return s.store.GetQuizByID(id)
}

// AskAI forwards a follow-up question about an answered item to the
// explanation model. The stored gemini key is used when the request
// carries none.
func (s *Service) AskAI(ctx context.Context, req *models.AskAIRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	apiKey := req.APIKey
	if apiKey == "" {
		stored, err := s.settings.APIKey("gemini")
		if err != nil {
			return "", err
		}
		apiKey = stored
	}
	if apiKey == "" {
		return "", fmt.Errorf("%w for provider %q", session.ErrMissingCredential, "gemini")
	}

	return s.source.AskExplanation(ctx, req.QuestionContext.QuestionText, req.QuestionContext.Explanation, req.UserQuery, apiKey)
}

// LogClientError records a frontend-reported error server-side.
func (s *Service) LogClientError(report *models.ClientErrorReport) {
	log.Printf("Client error: %s | context: %s | stack: %s", report.Error, report.Context, report.Stack)
	if report.ResponseText != "" {
		log.Printf("Client error response body: %s", report.ResponseText)
	}
}
