package models

// Settings is the server-side configuration store contents: quiz
// defaults and the topic catalog. Provider API keys are stored
// separately (a redis hash) and only merged into the payload for the
// settings screen.
type Settings struct {
	TimeLimitMinutes int                 `json:"time_limit_minutes"`
	NumQuestions     int                 `json:"num_questions"`
	APIProvider      string              `json:"api_provider"`
	GradeLevel       string              `json:"grade_level"`
	Difficulty       string              `json:"difficulty"`
	Topics           map[string][]string `json:"topics"`
}

// DefaultSettings are used until the user saves their own.
func DefaultSettings() *Settings {
	return &Settings{
		TimeLimitMinutes: 10,
		NumQuestions:     10,
		APIProvider:      "gemini",
		GradeLevel:       "high school",
		Difficulty:       "medium",
		Topics:           map[string][]string{},
	}
}

// SettingsPayload is the settings screen's request/response body:
// settings plus the per-provider API keys.
type SettingsPayload struct {
	Settings
	APIKeys map[string]string `json:"api_keys"`
}
