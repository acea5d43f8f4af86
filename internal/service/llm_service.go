package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"idea-portal/internal/config"
	"idea-portal/internal/models"
)

// ErrLLMDisabled is returned by the LLM service when it is switched off
var ErrLLMDisabled = errors.New("llm service disabled")

// LLMService handles interaction with the Language Model
type LLMService struct {
	baseURL string
	model   string
	enabled bool
	client  *http.Client
}

// NewLLMService creates a new LLM service
func NewLLMService(cfg *config.LLMConfig) *LLMService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	return &LLMService{
		baseURL: baseURL,
		model:   model,
		enabled: cfg.Enabled,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// judgeAnswer is the JSON shape the model is asked to reply with
type judgeAnswer struct {
	IsDuplicate *bool   `json:"is_duplicate"`
	MatchID     *string `json:"match_id"`
	MatchTitle  *string `json:"match_title"`
	Reason      string  `json:"reason"`
}

// Judge asks the model whether req repeats one of its candidates.
// Transport failures, non-200 answers and unparsable output are errors.
func (s *LLMService) Judge(ctx context.Context, req DuplicateRequest) (models.DuplicateVerdict, error) {
	if !s.enabled {
		return models.DuplicateVerdict{}, ErrLLMDisabled
	}

	raw, err := s.generate(ctx, s.buildPrompt(req))
	if err != nil {
		return models.DuplicateVerdict{}, err
	}

	var answer judgeAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &answer); err != nil {
		return models.DuplicateVerdict{}, fmt.Errorf("unparsable duplicate verdict: %w", err)
	}
	if answer.IsDuplicate == nil {
		return models.DuplicateVerdict{}, fmt.Errorf("unparsable duplicate verdict: is_duplicate missing")
	}

	verdict := models.DuplicateVerdict{
		IsDuplicate: *answer.IsDuplicate,
		MatchID:     answer.MatchID,
		MatchTitle:  answer.MatchTitle,
		Reason:      strings.TrimSpace(answer.Reason),
	}
	if verdict.MatchID != nil && strings.TrimSpace(*verdict.MatchID) == "" {
		verdict.MatchID = nil
	}
	return verdict, nil
}

func (s *LLMService) generate(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(ollamaRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm service unreachable: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		// If model not found, try to pull it
		if resp.StatusCode == http.StatusNotFound && strings.Contains(string(bodyBytes), "model") {
			go s.PullModel(context.WithoutCancel(ctx))
		}
		return "", fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	return ollamaResp.Response, nil
}

func (s *LLMService) buildPrompt(req DuplicateRequest) string {
	var sb strings.Builder
	sb.WriteString("You compare a new improvement proposal with existing proposals of the same category. ")
	sb.WriteString("Decide whether the new proposal describes essentially the same idea as one of the existing ones. ")
	sb.WriteString("Answer ONLY with a JSON object of the form ")
	sb.WriteString(`{"is_duplicate": true|false, "match_id": "<id of the existing proposal or null>", "match_title": "<its title or null>", "reason": "<one sentence>"}`)
	sb.WriteString(".\n\n")

	sb.WriteString(fmt.Sprintf("New proposal title: %s\n", req.Title))
	sb.WriteString(fmt.Sprintf("New proposal content:\n%s\n\n", req.Content))
	sb.WriteString("Existing proposals:\n")
	for _, c := range req.Candidates {
		sb.WriteString(fmt.Sprintf("- id: %s\n  title: %s\n  summary: %s\n", c.ID, c.Title, c.Summary))
	}
	return sb.String()
}

// PullModel triggers a model pull
func (s *LLMService) PullModel(ctx context.Context) {
	slog.Info("Attempting to pull LLM model", "model", s.model)

	jsonData, _ := json.Marshal(map[string]string{"name": s.model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/pull", bytes.NewReader(jsonData))
	if err != nil {
		slog.Error("Failed to build model pull request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Failed to trigger model pull", "error", err)
		return
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Failed to pull model", "status", resp.StatusCode, "body", string(bodyBytes))
		return
	}

	slog.Info("Model pull triggered successfully", "model", s.model)
}
