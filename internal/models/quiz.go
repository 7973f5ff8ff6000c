package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"eduquiz/internal/session"
)

// QuizRecord is one completed quiz attempt as persisted. Created exactly
// once per explicit save; never mutated afterwards.
type QuizRecord struct {
	ID             uint                 `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time            `json:"timestamp"`
	UpdatedAt      time.Time            `json:"-"`
	DeletedAt      gorm.DeletedAt       `json:"-" gorm:"index"`
	Score          int                  `json:"score" gorm:"not null"`
	TotalQuestions int                  `json:"total_questions" gorm:"not null"`
	TimeTaken      string               `json:"time_taken"`
	Mode           string               `json:"mode"`
	Sections       string               `json:"sections"`
	GradeLevel     string               `json:"grade_level" gorm:"default:'high school'"`
	Difficulty     string               `json:"difficulty" gorm:"default:'medium'"`
	Questions      []QuizQuestionRecord `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (QuizRecord) TableName() string {
	return "quizzes"
}

// QuizQuestionRecord is one answered question row belonging to a saved
// quiz.
type QuizQuestionRecord struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time      `json:"-"`
	UpdatedAt     time.Time      `json:"-"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	QuizID        uint           `json:"quiz_id"`
	QuestionText  string         `json:"question_text" gorm:"not null"`
	Options       OptionList     `json:"options" gorm:"type:jsonb;not null"`
	CorrectAnswer string         `json:"correct_answer" gorm:"not null"`
	UserAnswer    string         `json:"user_answer"`
	Explanation   string         `json:"explanation"`
	Section       string         `json:"section"`
	Topic         string         `json:"topic"`
}

func (QuizQuestionRecord) TableName() string {
	return "quiz_questions"
}

// OptionList stores the four answer options as a JSON column.
type OptionList []string

func (o OptionList) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *OptionList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("unsupported options column type %T", value)
	}
}

// NewQuizRecord builds the persistable record from a completed session's
// summary.
func NewQuizRecord(sum session.Summary) *QuizRecord {
	record := &QuizRecord{
		Score:          sum.Score,
		TotalQuestions: sum.TotalQuestions,
		TimeTaken:      sum.TimeTaken,
		Mode:           sum.Mode,
		Sections:       sum.Sections,
		GradeLevel:     sum.GradeLevel,
		Difficulty:     sum.Difficulty,
	}
	for _, a := range sum.Answered {
		record.Questions = append(record.Questions, QuizQuestionRecord{
			QuestionText:  a.QuestionText,
			Options:       OptionList(a.Options),
			CorrectAnswer: a.CorrectAnswer,
			UserAnswer:    a.UserAnswer,
			Explanation:   a.Explanation,
			Section:       a.Section,
			Topic:         a.Topic,
		})
	}
	return record
}
