package selectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
)

// SLMName is the selector name used in votes and weight tables.
const SLMName = "slm"

// SLM asks a small model served by Ollama to pick one of the configured
// choices. An answer outside the choices votes for the table default with low
// confidence.
type SLM struct {
	baseURL    string
	model      string
	table      *config.RoutingTable
	httpClient *http.Client
}

// NewSLM creates a small local model selector.
func NewSLM(baseURL, model string, timeout time.Duration, table *config.RoutingTable) *SLM {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SLM{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		table:      table,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements council.Selector.
func (s *SLM) Name() string { return SLMName }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// SelectModel implements council.Selector.
func (s *SLM) SelectModel(ctx context.Context, prompt string) (council.Vote, error) {
	body, err := json.Marshal(generateRequest{
		Model:   s.model,
		Prompt:  s.buildPrompt(prompt),
		Stream:  false,
		Options: generateOptions{Temperature: 0, NumPredict: 50},
	})
	if err != nil {
		return council.Vote{}, s.fail(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return council.Vote{}, s.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return council.Vote{}, s.fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return council.Vote{}, s.fail(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return council.Vote{}, s.fail(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}
	answer := gjson.GetBytes(raw, "response")
	if !answer.Exists() {
		return council.Vote{}, s.fail(fmt.Errorf("response field missing"))
	}

	selection := normalizeSelection(answer.String())
	if !s.table.HasSLMChoice(selection) {
		rationale := fmt.Sprintf("Small local model answered %q, using default", selection)
		return council.NewVote(s.Name(), s.table.DefaultModel, rationale).WithConfidence(0.3), nil
	}
	return council.NewVote(s.Name(), selection, "Decision made by small local model").WithConfidence(0.8), nil
}

func (s *SLM) buildPrompt(prompt string) string {
	var b strings.Builder
	b.WriteString("You are a STRICT model selector. Choose exactly one from:\n")
	for _, c := range s.table.SLMChoices {
		fmt.Fprintf(&b, "- %s -> %s\n", c.Model, c.Description)
	}
	b.WriteString("\nReturn only the model code.\n\nUser Prompt:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nSelected Model:")
	return b.String()
}

// normalizeSelection keeps the first line of the answer without quotes or
// surrounding punctuation.
func normalizeSelection(answer string) string {
	answer = strings.TrimSpace(answer)
	if i := strings.IndexByte(answer, '\n'); i >= 0 {
		answer = answer[:i]
	}
	return strings.Trim(strings.TrimSpace(answer), "`\"'.,")
}

func (s *SLM) fail(err error) error {
	return council.NewSelectorError(s.Name(), err)
}
