package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"eduquiz/internal/session"
)

// Client generates questions by proxying AI text-generation providers.
// One provider call produces one question; Generate fans the calls out
// concurrently and retries until the requested count is reached or the
// pass budget runs out.

const (
	geminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash-latest:generateContent"
	openaiURL = "https://api.openai.com/v1/chat/completions"
	groqURL   = "https://api.groq.com/openai/v1/chat/completions"

	openaiModel = "gpt-3.5-turbo"
	groqModel   = "mixtral-8x7b-32768"

	maxPasses = 5
)

var providerURLs = map[string]string{
	"gemini": geminiURL,
	"openai": openaiURL,
	"groq":   groqURL,
}

// SupportedProviders lists the providers Generate accepts.
func SupportedProviders() []string {
	return []string{"gemini", "openai", "groq"}
}

type Client struct {
	httpClient *http.Client
	urls       map[string]string // provider -> endpoint, overridable in tests
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		urls:       providerURLs,
	}
}

// Topic pairs a section with one of its topics.
type Topic struct {
	Section string `json:"section"`
	Topic   string `json:"topic"`
}

// Request carries the generation parameters for one quiz start.
type Request struct {
	Topics       []Topic
	NumQuestions int
	Provider     string
	APIKey       string
	GradeLevel   string
	Difficulty   string
}

// Generate produces up to req.NumQuestions validated questions. Topics
// are assigned round-robin; duplicate question texts are discarded. It
// returns ErrEmptyResult when no usable question came back at all.
func (c *Client) Generate(ctx context.Context, req Request) ([]session.Question, error) {
	if _, ok := c.urls[req.Provider]; !ok {
		return nil, fmt.Errorf("%w: unsupported provider %q", session.ErrSourceFailure, req.Provider)
	}
	if len(req.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", session.ErrSourceFailure)
	}

	var (
		questions []session.Question
		seen      = make(map[string]bool)
	)

	for pass := 0; pass < maxPasses && len(questions) < req.NumQuestions; pass++ {
		remaining := req.NumQuestions - len(questions)
		log.Printf("Generation pass %d: requesting %d question(s) from %s", pass+1, remaining, req.Provider)

		results := make([]session.Question, remaining)
		errs := make([]error, remaining)

		var wg sync.WaitGroup
		for i := 0; i < remaining; i++ {
			topic := req.Topics[i%len(req.Topics)]
			wg.Add(1)
			go func(slot int, topic Topic) {
				defer wg.Done()
				results[slot], errs[slot] = c.generateOne(ctx, topic, req)
			}(i, topic)
		}
		wg.Wait()

		for i := range results {
			if errs[i] != nil {
				log.Printf("Question generation failed: %v", errs[i])
				continue
			}
			signature := strings.ToLower(strings.TrimSpace(results[i].QuestionText))
			if signature == "" || seen[signature] {
				log.Printf("Discarding duplicate or empty question from %s", req.Provider)
				continue
			}
			seen[signature] = true
			questions = append(questions, results[i])
		}

		if ctx.Err() != nil {
			break
		}
	}

	if len(questions) == 0 {
		return nil, session.ErrEmptyResult
	}
	if len(questions) > req.NumQuestions {
		questions = questions[:req.NumQuestions]
	}
	log.Printf("Generated %d of %d requested questions", len(questions), req.NumQuestions)
	return questions, nil
}

// generateOne asks the provider for a single question and validates it.
func (c *Client) generateOne(ctx context.Context, topic Topic, req Request) (session.Question, error) {
	prompt := generationPrompt(topic.Section, topic.Topic, req.GradeLevel, req.Difficulty)

	content, err := c.complete(ctx, req.Provider, req.APIKey, prompt)
	if err != nil {
		return session.Question{}, err
	}

	var q session.Question
	if err := json.Unmarshal([]byte(content), &q); err != nil {
		return session.Question{}, fmt.Errorf("%w: provider returned invalid question JSON: %v", session.ErrSourceFailure, err)
	}
	if err := q.Validate(); err != nil {
		return session.Question{}, fmt.Errorf("%w: provider returned malformed question", session.ErrSourceFailure)
	}
	return q, nil
}

// complete sends one prompt to the provider and extracts the text of the
// first candidate/choice.
func (c *Client) complete(ctx context.Context, provider, apiKey, prompt string) (string, error) {
	url := c.urls[provider]

	var (
		payload interface{}
		headers = map[string]string{"Content-Type": "application/json"}
	)
	if provider == "gemini" {
		url = url + "?key=" + apiKey
		payload = geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			GenerationConfig: &geminiGenerationConfig{
				ResponseMimeType: "application/json",
			},
		}
	} else {
		headers["Authorization"] = "Bearer " + apiKey
		model := openaiModel
		if provider == "groq" {
			model = groqModel
		}
		payload = chatRequest{
			Model:          model,
			Messages:       []chatMessage{{Role: "user", Content: prompt}},
			ResponseFormat: &chatResponseFormat{Type: "json_object"},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status %d: %s", session.ErrSourceFailure, provider, resp.StatusCode, truncate(string(respBody), 200))
	}

	content, err := extractContent(provider, respBody)
	if err != nil {
		return "", err
	}
	return content, nil
}

func extractContent(provider string, body []byte) (string, error) {
	if provider == "gemini" {
		var parsed geminiResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("%w: invalid JSON from gemini: %v", session.ErrSourceFailure, err)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("%w: missing content in gemini response", session.ErrSourceFailure)
		}
		return parsed.Candidates[0].Content.Parts[0].Text, nil
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: invalid JSON from %s: %v", session.ErrSourceFailure, provider, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: missing content in %s response", session.ErrSourceFailure, provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

// AskExplanation answers a follow-up query about an answered question
// using gemini with a plain-text response.
func (c *Client) AskExplanation(ctx context.Context, questionText, explanation, userQuery, apiKey string) (string, error) {
	prompt := explanationPrompt(questionText, explanation, userQuery)

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "text/plain",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}

	url := c.urls["gemini"] + "?key=" + apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", session.ErrSourceFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gemini returned status %d", session.ErrSourceFailure, resp.StatusCode)
	}

	return extractContent("gemini", respBody)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Provider wire shapes.

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
