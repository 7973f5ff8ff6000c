package quiz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"eduquiz/internal/models"
	"eduquiz/internal/session"
)

var testSecret = []byte("test-secret")

func newTestRouter(store *fakeStore) *mux.Router {
	svc := newTestService(&fakeSource{}, &fakeSettings{timeLimit: 600}, store, nil)
	h := NewHandler(svc, testSecret, time.Hour)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quiz/start-manual", h.StartManualQuiz).Methods("POST")
	api.HandleFunc("/quiz/generate-prompt", h.GeneratePrompt).Methods("POST")
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history/{id}", h.GetHistoryEntry).Methods("GET")
	api.HandleFunc("/log-error", h.LogClientError).Methods("POST")

	protected := api.PathPrefix("/session").Subrouter()
	protected.Use(session.TokenMiddleware(testSecret))
	protected.HandleFunc("", h.GetSession).Methods("GET")
	protected.HandleFunc("/answer", h.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/advance", h.Advance).Methods("POST")
	protected.HandleFunc("/end", h.EndQuiz).Methods("POST")
	protected.HandleFunc("/save", h.SaveQuiz).Methods("POST")
	protected.HandleFunc("/retry", h.RetryIncorrect).Methods("POST")
	protected.HandleFunc("/reset", h.ResetSession).Methods("POST")
	protected.HandleFunc("/export", h.ExportCSV).Methods("GET")
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func startManual(t *testing.T, r http.Handler, n int) models.StartQuizResponse {
	t.Helper()
	w := doJSON(t, r, "POST", "/api/quiz/start-manual", "", models.ManualStartRequest{Questions: questionSet(n)})
	if w.Code != http.StatusOK {
		t.Fatalf("start-manual status %d: %s", w.Code, w.Body.String())
	}
	var resp models.StartQuizResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestStartManualEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	resp := startManual(t, r, 2)
	if resp.Session == "" {
		t.Fatal("no session token issued")
	}
	if resp.Total != 2 || resp.TimeLimitSeconds != 600 {
		t.Errorf("total=%d limit=%d, want 2/600", resp.Total, resp.TimeLimitSeconds)
	}
	if len(resp.Question.Options) != 4 {
		t.Errorf("first question has %d options", len(resp.Question.Options))
	}
}

func TestStartManualRejectsBadQuestions(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	bad := questionSet(1)
	bad[0].CorrectAnswer = "not an option"
	w := doJSON(t, r, "POST", "/api/quiz/start-manual", "", models.ManualStartRequest{Questions: bad})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["detail"] == "" {
		t.Error("error body missing detail field")
	}
}

func TestSessionEndpointsRequireToken(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := doJSON(t, r, "POST", "/api/session/answer", "", models.SubmitAnswerRequest{SelectedOption: "a"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAnswerAdvanceFlow(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 2)

	w := doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "a"})
	if w.Code != http.StatusOK {
		t.Fatalf("answer status %d: %s", w.Code, w.Body.String())
	}
	var result session.AnswerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Correct || result.Score != 1 || result.LastQuestion {
		t.Errorf("result = %+v", result)
	}

	// Double submit for the same question is refused.
	w = doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "b"})
	if w.Code != http.StatusConflict {
		t.Fatalf("double answer status = %d, want 409", w.Code)
	}

	w = doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("advance status %d: %s", w.Code, w.Body.String())
	}
	var adv models.AdvanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &adv); err != nil {
		t.Fatal(err)
	}
	if adv.Completed || adv.Question == nil || adv.Question.Index != 1 {
		t.Errorf("advance response = %+v", adv)
	}

	// Finish the second question; advance returns the summary.
	doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "a"})
	w = doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &adv); err != nil {
		t.Fatal(err)
	}
	if !adv.Completed || adv.Summary == nil || adv.Summary.Score != 2 {
		t.Errorf("final advance = %+v", adv)
	}
}

func TestAdvanceWithoutAnswer(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)

	w := doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestSaveEndpoint(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store)
	resp := startManual(t, r, 1)

	// Not completed yet.
	w := doJSON(t, r, "POST", "/api/session/save", resp.Session, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("early save status = %d, want 409", w.Code)
	}

	doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "a"})
	doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)

	w = doJSON(t, r, "POST", "/api/session/save", resp.Session, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("save status %d: %s", w.Code, w.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("store holds %d records", len(store.saved))
	}
}

func TestExportEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)

	doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "a"})
	doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)

	req := httptest.NewRequest("GET", "/api/session/export", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Session)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("export status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "Question,Section,Topic,Your Answer,Correct Answer,Is Correct,Explanation") {
		t.Errorf("export missing header row: %q", w.Body.String())
	}
}

func TestRetryEndpointIssuesNewToken(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)

	// Answer wrong so a retry is possible.
	doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "b"})
	doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)

	w := doJSON(t, r, "POST", "/api/session/retry", resp.Session, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("retry status %d: %s", w.Code, w.Body.String())
	}
	var fresh models.StartQuizResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.Session == "" || fresh.Session == resp.Session {
		t.Error("retry did not issue a fresh session token")
	}
	if fresh.Total != 1 {
		t.Errorf("retry session total = %d, want 1", fresh.Total)
	}

	// The old session is gone.
	w = doJSON(t, r, "GET", "/api/session", resp.Session, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("old session status = %d, want 404", w.Code)
	}
}

func TestRetryWithoutIncorrectAnswers(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)

	doJSON(t, r, "POST", "/api/session/answer", resp.Session, models.SubmitAnswerRequest{SelectedOption: "a"})
	doJSON(t, r, "POST", "/api/session/advance", resp.Session, nil)

	w := doJSON(t, r, "POST", "/api/session/retry", resp.Session, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	// The completed session survives the refused retry.
	w = doJSON(t, r, "GET", "/api/session", resp.Session, nil)
	if w.Code != http.StatusOK {
		t.Errorf("session lookup after refused retry = %d", w.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)

	w := doJSON(t, r, "POST", "/api/session/reset", resp.Session, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status %d", w.Code)
	}
	w = doJSON(t, r, "GET", "/api/session", resp.Session, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("session after reset = %d, want 404", w.Code)
	}
}

func TestHistoryDateValidation(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := doJSON(t, r, "GET", "/api/history?date=28-08-2026", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["detail"] != "Invalid date format. Use YYYY-MM-DD." {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestHistoryListingAndModeFilter(t *testing.T) {
	store := &fakeStore{}
	store.saved = []*models.QuizRecord{
		{ID: 1, Mode: "ai", Score: 5, TotalQuestions: 10},
		{ID: 2, Mode: "manual", Score: 3, TotalQuestions: 5},
	}
	r := newTestRouter(store)

	w := doJSON(t, r, "GET", "/api/history?mode=manual", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var records []models.QuizRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Mode != "manual" {
		t.Errorf("records = %+v", records)
	}

	w = doJSON(t, r, "GET", "/api/history/2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail status %d", w.Code)
	}
	w = doJSON(t, r, "GET", "/api/history/99", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", w.Code)
	}
}

func TestHistoryEmptyIsArray(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := doJSON(t, r, "GET", "/api/history", "", nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty history rendered %q, want []", got)
	}
}

func TestGeneratePromptEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := doJSON(t, r, "POST", "/api/quiz/generate-prompt", "", models.GeneratePromptRequest{
		NumQuestions: 5,
		Topics:       map[string][]string{"Math": {"Algebra"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	prompt := body["prompt"]
	for _, want := range []string{"5", "Math", "Algebra"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLogClientErrorEndpoint(t *testing.T) {
	r := newTestRouter(&fakeStore{})

	w := doJSON(t, r, "POST", "/api/log-error", "", models.ClientErrorReport{
		Error:   "TypeError: x is undefined",
		Context: "results screen",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStaleTokenAfterReset(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	resp := startManual(t, r, 1)
	doJSON(t, r, "POST", "/api/session/reset", resp.Session, nil)

	// A token for a discarded session authenticates but resolves to 404.
	for _, path := range []string{"/api/session/answer", "/api/session/advance", "/api/session/end"} {
		w := doJSON(t, r, "POST", path, resp.Session, map[string]string{"selected_option": "a"})
		if w.Code != http.StatusNotFound {
			t.Errorf("%s after reset = %d, want 404", path, w.Code)
		}
	}
}

func TestTokensAreSessionScoped(t *testing.T) {
	r := newTestRouter(&fakeStore{})
	first := startManual(t, r, 1)

	forged, err := session.NewToken([]byte("wrong-secret"), "ANYCODE", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := doJSON(t, r, "GET", "/api/session", forged, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged token status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, "GET", "/api/session", first.Session, nil)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d: %s", w.Code, w.Body.String())
	}
}

func TestRetryTokensDiffer(t *testing.T) {
	// Two sessions never share a code, so their tokens differ.
	r := newTestRouter(&fakeStore{})
	a := startManual(t, r, 1)
	b := startManual(t, r, 1)
	if a.Session == b.Session {
		t.Fatalf("two sessions share a token: %s", a.Session)
	}
}
