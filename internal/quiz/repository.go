package quiz

import (
	"log"
	"time"

	"gorm.io/gorm"

	"eduquiz/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveQuiz(record *models.QuizRecord) error {
	err := r.db.Create(record).Error
	if err != nil {
		log.Printf("Error saving quiz: %v", err)
		return err
	}
	log.Printf("Saved quiz with ID: %d", record.ID)
	return nil
}

// HistoryFilter narrows the history listing. Zero values mean "no
// filter"; Limit defaults to 50 and is capped at 100.
type HistoryFilter struct {
	Mode  string
	Date  time.Time
	Skip  int
	Limit int
}

func (r *Repository) GetQuizzes(filter HistoryFilter) ([]models.QuizRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	query := r.db.Model(&models.QuizRecord{})
	if filter.Mode != "" {
		query = query.Where("mode = ?", filter.Mode)
	}
	if !filter.Date.IsZero() {
		day := filter.Date.Truncate(24 * time.Hour)
		query = query.Where("created_at >= ? AND created_at < ?", day, day.Add(24*time.Hour))
	}

	var records []models.QuizRecord
	err := query.Order("created_at desc").
		Offset(filter.Skip).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		log.Printf("Error getting quiz history: %v", err)
		return nil, err
	}
	return records, nil
}

func (r *Repository) GetQuizByID(id uint) (*models.QuizRecord, error) {
	var record models.QuizRecord
	err := r.db.Preload("Questions").First(&record, id).Error
	if err != nil {
		log.Printf("Error getting quiz %d: %v", id, err)
		return nil, err
	}
	return &record, nil
}
