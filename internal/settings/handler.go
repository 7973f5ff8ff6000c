package settings

import (
	"encoding/json"
	"log"
	"net/http"

	"eduquiz/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Payload()
	if err != nil {
		log.Printf("Error loading settings: %v", err)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var payload models.SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Save(&payload); err != nil {
		log.Printf("Error saving settings: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "Settings saved successfully"})
}

// GetConfig serves the client bootstrap config: app identity plus the
// quiz defaults the setup screen pre-fills.
func (h *Handler) GetConfig(appName, appVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := h.service.Load()
		if err != nil {
			log.Printf("Error loading settings for config: %v", err)
			http.Error(w, "Failed to load config", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"app_name": appName,
			"version":  appVersion,
			"defaults": map[string]interface{}{
				"ai_provider":   stored.APIProvider,
				"grade_level":   stored.GradeLevel,
				"difficulty":    stored.Difficulty,
				"num_questions": stored.NumQuestions,
				"time_limit":    stored.TimeLimitMinutes,
			},
		})
	}
}
