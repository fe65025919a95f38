package selectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
)

// ClassifierName is the selector name used in votes and weight tables.
const ClassifierName = "classifier"

// maxResponseBytes caps how much of a remote response is read.
const maxResponseBytes = 1 << 20

// ZeroShotClassifier asks a hosted zero-shot classification model which of
// the candidate labels fits the prompt and maps the top label to a model.
type ZeroShotClassifier struct {
	url        string
	apiKey     string
	table      *config.RoutingTable
	httpClient *http.Client
}

// NewZeroShotClassifier creates a classifier selector.
func NewZeroShotClassifier(url, apiKey string, timeout time.Duration, table *config.RoutingTable) *ZeroShotClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ZeroShotClassifier{
		url:        url,
		apiKey:     apiKey,
		table:      table,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements council.Selector.
func (c *ZeroShotClassifier) Name() string { return ClassifierName }

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

// SelectModel implements council.Selector.
func (c *ZeroShotClassifier) SelectModel(ctx context.Context, prompt string) (council.Vote, error) {
	body, err := json.Marshal(zeroShotRequest{
		Inputs:     prompt,
		Parameters: zeroShotParameters{CandidateLabels: c.table.CandidateLabels},
	})
	if err != nil {
		return council.Vote{}, c.fail(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return council.Vote{}, c.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return council.Vote{}, c.fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return council.Vote{}, c.fail(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return council.Vote{}, c.fail(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}
	if !gjson.ValidBytes(raw) {
		return council.Vote{}, c.fail(fmt.Errorf("invalid JSON response"))
	}

	// Some deployments wrap the result in a single element array.
	result := gjson.ParseBytes(raw)
	if result.IsArray() {
		result = result.Get("0")
	}
	label := result.Get("labels.0")
	if !label.Exists() || label.String() == "" {
		return council.Vote{}, c.fail(fmt.Errorf("response has no labels"))
	}

	confidence := council.DefaultConfidence
	if score := result.Get("scores.0"); score.Exists() {
		confidence = score.Float()
	}

	topic := label.String()
	rationale := fmt.Sprintf("Zero-shot classified as %s", topic)
	return council.NewVote(c.Name(), c.table.ModelForTopic(topic), rationale).WithConfidence(confidence), nil
}

func (c *ZeroShotClassifier) fail(err error) error {
	return council.NewSelectorError(c.Name(), err)
}
