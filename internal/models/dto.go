package models

import (
	"fmt"

	"eduquiz/internal/generator"
	"eduquiz/internal/session"
)

// Request/response shapes at the HTTP boundary.

const (
	MinQuestions = 1
	MaxQuestions = 50
)

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

var validGradeLevels = map[string]bool{
	"elementary":    true,
	"middle school": true,
	"high school":   true,
	"college":       true,
	"graduate":      true,
}

// StartQuizRequest starts a generated-mode quiz. APIKey may be empty, in
// which case the stored credential for the provider is used.
type StartQuizRequest struct {
	Topics       []generator.Topic `json:"topics"`
	NumQuestions int               `json:"num_questions"`
	APIProvider  string            `json:"api_provider"`
	APIKey       string            `json:"api_key"`
	GradeLevel   string            `json:"grade_level"`
	Difficulty   string            `json:"difficulty"`
}

func (r *StartQuizRequest) Validate() error {
	if len(r.Topics) == 0 {
		return fmt.Errorf("no topics provided")
	}
	for _, t := range r.Topics {
		if t.Section == "" || t.Topic == "" {
			return fmt.Errorf("each topic needs a section and a topic name")
		}
	}
	if r.NumQuestions < MinQuestions || r.NumQuestions > MaxQuestions {
		return fmt.Errorf("number of questions must be between %d and %d", MinQuestions, MaxQuestions)
	}
	if r.GradeLevel == "" {
		r.GradeLevel = "high school"
	} else if !validGradeLevels[r.GradeLevel] {
		return fmt.Errorf("invalid grade level %q", r.GradeLevel)
	}
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	} else if !validDifficulties[r.Difficulty] {
		return fmt.Errorf("difficulty must be one of: easy, medium, hard")
	}
	return nil
}

// ManualStartRequest starts a manual-mode quiz from a user-supplied
// question list.
type ManualStartRequest struct {
	Questions  []session.Question `json:"questions"`
	GradeLevel string             `json:"grade_level"`
	Difficulty string             `json:"difficulty"`
}

// StartQuizResponse hands the client its session token plus what it
// needs to render the first question.
type StartQuizResponse struct {
	Session          string               `json:"session"`
	Total            int                  `json:"total"`
	TimeLimitSeconds int                  `json:"time_limit_seconds"`
	Question         session.QuestionView `json:"question"`
}

// SubmitAnswerRequest carries the option the user picked.
type SubmitAnswerRequest struct {
	SelectedOption string `json:"selected_option"`
}

// AdvanceResponse is either the next question or the completion summary.
type AdvanceResponse struct {
	Completed bool                  `json:"completed"`
	Question  *session.QuestionView `json:"question,omitempty"`
	Summary   *session.Summary      `json:"summary,omitempty"`
}

// GeneratePromptRequest asks for the manual-mode bulk prompt.
type GeneratePromptRequest struct {
	NumQuestions int                 `json:"num_questions"`
	Topics       map[string][]string `json:"topics"`
	GradeLevel   string              `json:"grade_level"`
	Difficulty   string              `json:"difficulty"`
}

func (r *GeneratePromptRequest) Validate() error {
	if r.NumQuestions < MinQuestions || r.NumQuestions > MaxQuestions {
		return fmt.Errorf("number of questions must be between %d and %d", MinQuestions, MaxQuestions)
	}
	if len(r.Topics) == 0 {
		return fmt.Errorf("at least one section with topics must be provided")
	}
	for sec, topics := range r.Topics {
		if sec == "" || len(topics) == 0 {
			return fmt.Errorf("every section needs a name and at least one topic")
		}
	}
	if r.GradeLevel == "" {
		r.GradeLevel = "high school"
	}
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	return nil
}

// AskAIRequest asks for a follow-up explanation of an answered question.
type AskAIRequest struct {
	QuestionContext struct {
		QuestionText string `json:"question_text"`
		Explanation  string `json:"explanation"`
	} `json:"question_context"`
	UserQuery string `json:"user_query"`
	APIKey    string `json:"api_key"`
}

func (r *AskAIRequest) Validate() error {
	if r.QuestionContext.QuestionText == "" || r.QuestionContext.Explanation == "" {
		return fmt.Errorf("question context must include question_text and explanation")
	}
	if r.UserQuery == "" {
		return fmt.Errorf("user query cannot be empty")
	}
	return nil
}

// ClientErrorReport is a frontend error forwarded for server-side
// logging.
type ClientErrorReport struct {
	Error        string `json:"error"`
	Stack        string `json:"stack"`
	Context      string `json:"context"`
	ResponseText string `json:"responseText"`
}
