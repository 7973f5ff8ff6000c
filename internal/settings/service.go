package settings

import (
	"errors"
	"fmt"
	"log"

	"eduquiz/internal/models"
	"eduquiz/pkg/cache"
)

// Store is the persistence the settings service needs; pkg/cache's
// redis wrapper implements it.
type Store interface {
	GetSettings() (*models.Settings, error)
	SetSettings(*models.Settings) error
	GetAPIKey(provider string) (string, error)
	GetAPIKeys() (map[string]string, error)
	SetAPIKeys(map[string]string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Load returns the stored settings, falling back to defaults when the
// user has never saved any.
func (s *Service) Load() (*models.Settings, error) {
	stored, err := s.store.GetSettings()
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return models.DefaultSettings(), nil
		}
		return nil, err
	}
	return stored, nil
}

// Save validates and persists settings and any API keys included in the
// payload. Blank keys are ignored so the screen can omit unchanged ones.
func (s *Service) Save(payload *models.SettingsPayload) error {
	if payload.TimeLimitMinutes < 1 || payload.TimeLimitMinutes > 180 {
		return fmt.Errorf("time limit must be between 1 and 180 minutes")
	}
	if payload.NumQuestions < models.MinQuestions || payload.NumQuestions > models.MaxQuestions {
		return fmt.Errorf("number of questions must be between %d and %d", models.MinQuestions, models.MaxQuestions)
	}
	if payload.Topics == nil {
		payload.Topics = map[string][]string{}
	}

	if err := s.store.SetSettings(&payload.Settings); err != nil {
		return err
	}

	keys := make(map[string]string)
	for provider, key := range payload.APIKeys {
		if key != "" {
			keys[provider] = key
		}
	}
	if err := s.store.SetAPIKeys(keys); err != nil {
		return err
	}

	log.Printf("Settings saved: provider=%s time_limit=%dm questions=%d sections=%d",
		payload.APIProvider, payload.TimeLimitMinutes, payload.NumQuestions, len(payload.Topics))
	return nil
}

// APIKey returns the stored credential for a provider, or "" when none
// is configured.
func (s *Service) APIKey(provider string) (string, error) {
	key, err := s.store.GetAPIKey(provider)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return key, nil
}

// Payload assembles the full settings screen body.
func (s *Service) Payload() (*models.SettingsPayload, error) {
	stored, err := s.Load()
	if err != nil {
		return nil, err
	}
	keys, err := s.store.GetAPIKeys()
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = map[string]string{}
	}
	return &models.SettingsPayload{Settings: *stored, APIKeys: keys}, nil
}

// TimeLimitSeconds is the configured session countdown in seconds.
func (s *Service) TimeLimitSeconds() (int, error) {
	stored, err := s.Load()
	if err != nil {
		return 0, err
	}
	return stored.TimeLimitMinutes * 60, nil
}
