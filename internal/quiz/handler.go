package quiz

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"eduquiz/internal/generator"
	"eduquiz/internal/models"
	"eduquiz/internal/session"

	"github.com/gorilla/mux"
)

type Handler struct {
	service     *Service
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewHandler(service *Service, tokenSecret []byte, tokenTTL time.Duration) *Handler {
	return &Handler{
		service:     service,
		tokenSecret: tokenSecret,
		tokenTTL:    tokenTTL,
	}
}

// writeError maps the session error taxonomy onto HTTP statuses and
// renders the body the frontend expects: {"detail": message}.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, session.ErrMissingCredential):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrEmptyResult),
		errors.Is(err, session.ErrSourceFailure),
		errors.Is(err, session.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, session.ErrStartPending),
		errors.Is(err, session.ErrStaleAttempt),
		errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrAlreadyAnswered),
		errors.Is(err, session.ErrAnswerRequired),
		errors.Is(err, session.ErrNoIncorrectAnswers):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// startResponse issues the session token and renders the first question.
func (h *Handler) startResponse(w http.ResponseWriter, sess *session.Session) {
	token, err := session.NewToken(h.tokenSecret, sess.Code(), h.tokenTTL)
	if err != nil {
		log.Printf("Error signing session token: %v", err)
		writeError(w, errors.New("failed to issue session token"))
		return
	}

	view, err := sess.CurrentQuestion()
	if err != nil {
		writeError(w, err)
		return
	}

	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, models.StartQuizResponse{
		Session:          token,
		Total:            snap.Total,
		TimeLimitSeconds: snap.TimeRemaining,
		Question:         view,
	})
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.StartQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	sess, err := h.service.StartGenerated(r.Context(), &req)
	if err != nil {
		log.Printf("Error starting quiz: %v", err)
		writeError(w, err)
		return
	}
	h.startResponse(w, sess)
}

func (h *Handler) StartManualQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.ManualStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	sess, err := h.service.StartManual(&req)
	if err != nil {
		log.Printf("Error starting manual quiz: %v", err)
		writeError(w, err)
		return
	}
	h.startResponse(w, sess)
}

func (h *Handler) GeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req models.GeneratePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	prompt := generator.BulkPrompt(req.NumQuestions, req.Topics, req.GradeLevel, req.Difficulty)
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (h *Handler) AskAI(w http.ResponseWriter, r *http.Request) {
	var req models.AskAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	answer, err := h.service.AskAI(r.Context(), &req)
	if err != nil {
		log.Printf("Error asking AI: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// sessionFromRequest resolves the session bound to the bearer token.
func (h *Handler) sessionFromRequest(r *http.Request) (*session.Session, error) {
	code, ok := session.CodeFromContext(r.Context())
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return h.service.Session(code)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := sess.Snapshot()
	body := map[string]interface{}{"state": snap}
	if snap.Status == session.StatusInProgress {
		if view, err := sess.CurrentQuestion(); err == nil {
			body["question"] = view
		}
	} else {
		summary := sess.Summary()
		body["summary"] = summary
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}
	if req.SelectedOption == "" {
		writeError(w, errors.New("selected_option cannot be empty"))
		return
	}

	result, err := sess.SubmitAnswer(req.SelectedOption)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Advance(sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) EndQuiz(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.service.End(sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) SaveQuiz(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.service.Save(sess)
	if err != nil {
		log.Printf("Error saving quiz: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "status": "Quiz saved"})
}

func (h *Handler) RetryIncorrect(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fresh, err := h.service.Retry(sess.Code())
	if err != nil {
		writeError(w, err)
		return
	}
	h.startResponse(w, fresh)
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	code, ok := session.CodeFromContext(r.Context())
	if !ok {
		writeError(w, session.ErrSessionNotFound)
		return
	}

	h.service.Reset(code)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Status() != session.StatusCompleted {
		writeError(w, session.ErrSessionActive)
		return
	}

	csv := session.ExportCSV(sess.Summary().Answered)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz_results.csv"`)
	w.Write([]byte(csv))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	filter := HistoryFilter{Mode: r.URL.Query().Get("mode")}

	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, errors.New("Invalid date format. Use YYYY-MM-DD."))
			return
		}
		filter.Date = date
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if skip, err := strconv.Atoi(raw); err == nil && skip > 0 {
			filter.Skip = skip
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	records, err := h.service.History(filter)
	if err != nil {
		log.Printf("Error fetching history: %v", err)
		writeError(w, errors.New("failed to fetch history"))
		return
	}
	if records == nil {
		records = []models.QuizRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		writeError(w, errors.New("invalid quiz id"))
		return
	}

	record, err := h.service.GetQuiz(uint(id))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "quiz not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) LogClientError(w http.ResponseWriter, r *http.Request) {
	var report models.ClientErrorReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, errors.New("invalid request body"))
		return
	}

	h.service.LogClientError(&report)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}
