package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier names used by the heuristic and length selectors.
const (
	TierSimple  = "simple"
	TierGeneral = "general"
	TierComplex = "complex"
	TierCoding  = "coding"
	TierMath    = "math"
)

// TopicGeneral is used for classifier labels that have no mapping.
const TopicGeneral = "GENERAL"

// TopicProviders lists the provider columns of the topic table that have an
// execution adapter.
var TopicProviders = []string{"anthropic", "google", "openai"}

// RoutingTable maps prompt categories to concrete model identifiers.
// It is loaded once at startup and treated as read-only afterwards.
type RoutingTable struct {
	DefaultModel     string                       `yaml:"default_model"`
	Provider         string                       `yaml:"provider"`
	Tiers            map[string]string            `yaml:"tiers"`
	Topics           map[string]map[string]string `yaml:"topics"`
	CandidateLabels  []string                     `yaml:"candidate_labels"`
	LengthThresholds []LengthThreshold            `yaml:"length_thresholds"`
	SLMChoices       []SLMChoice                  `yaml:"slm_choices"`
}

// LengthThreshold routes prompts of at most MaxWords words to a tier.
type LengthThreshold struct {
	MaxWords int    `yaml:"max_words"`
	Tier     string `yaml:"tier"`
}

// SLMChoice is one option offered to the small local model selector.
type SLMChoice struct {
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// DefaultRoutingTable returns the built-in table used when no file is configured.
func DefaultRoutingTable() *RoutingTable {
	return &RoutingTable{
		DefaultModel: "ollama/phi3:latest",
		Provider:     "openai",
		Tiers: map[string]string{
			TierSimple:  "ollama/gemma2:2b",
			TierGeneral: "ollama/phi3:latest",
			TierComplex: "ollama/mistral:7b",
			TierCoding:  "ollama/qwen2.5-coder:latest",
			TierMath:    "ollama/qwen2-math:latest",
		},
		Topics: map[string]map[string]string{
			"SIMPLE":        {"anthropic": "claude-3-haiku-20240307", "openai": "gpt-3.5-turbo", "google": "gemini-2.5-flash-lite"},
			"FINANCE":       {"anthropic": "claude-3-5-haiku-20241022", "openai": "gpt-4o-mini", "google": "gemini-2.5-flash"},
			"COMPLEX":       {"anthropic": "claude-opus-4-20250514", "openai": "gpt-4o", "google": "gemini-2.5-pro"},
			"PROGRAMMING":   {"anthropic": "claude-sonnet-4-20250514", "openai": "gpt-4.1-mini", "google": "gemini-2.5-pro"},
			"TECHNOLOGY":    {"anthropic": "claude-3-haiku-20240307", "openai": "gpt-4o-mini", "google": "gemini-2.5-flash-lite"},
			"ENTERTAINMENT": {"anthropic": "claude-3-haiku-20240307", "openai": "gpt-3.5-turbo", "google": "gemini-2.5-flash-lite"},
			"HEALTH":        {"anthropic": "claude-opus-4-20250514", "openai": "gpt-4o", "google": "gemini-2.5-pro"},
			TopicGeneral:    {"anthropic": "claude-3-5-haiku-20241022", "openai": "gpt-4o-mini", "google": "gemini-2.5-flash"},
		},
		CandidateLabels: []string{"SIMPLE", "COMPLEX", "FINANCE", "PROGRAMMING", "TECHNOLOGY", "ENTERTAINMENT", "HEALTH"},
		LengthThresholds: []LengthThreshold{
			{MaxWords: 15, Tier: TierSimple},
			{MaxWords: 80, Tier: TierGeneral},
		},
		SLMChoices: []SLMChoice{
			{Model: "ollama/gemma2:2b", Description: "very short/simple factual questions"},
			{Model: "ollama/phi3:latest", Description: "general-purpose, moderate complexity"},
			{Model: "ollama/mistral:7b", Description: "long/complex reasoning tasks"},
			{Model: "ollama/qwen2.5-coder:latest", Description: "coding, programming, debugging"},
			{Model: "ollama/qwen2-math:latest", Description: "math/calculus/algebra"},
		},
	}
}

// LoadRoutingTable reads a YAML routing table. An empty path returns the
// built-in table. Sections missing from the file keep their built-in values.
func LoadRoutingTable(path string) (*RoutingTable, error) {
	table := DefaultRoutingTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table: %w", err)
	}
	return ParseRoutingTable(data)
}

// ParseRoutingTable decodes YAML on top of the built-in table.
func ParseRoutingTable(data []byte) (*RoutingTable, error) {
	var file RoutingTable
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse routing table: %w", err)
	}

	table := DefaultRoutingTable()
	if file.DefaultModel != "" {
		table.DefaultModel = file.DefaultModel
	}
	if file.Provider != "" {
		table.Provider = file.Provider
	}
	for tier, model := range file.Tiers {
		table.Tiers[tier] = model
	}
	for topic, models := range file.Topics {
		table.Topics[strings.ToUpper(topic)] = models
	}
	if len(file.CandidateLabels) > 0 {
		table.CandidateLabels = file.CandidateLabels
	}
	if len(file.LengthThresholds) > 0 {
		table.LengthThresholds = file.LengthThresholds
	}
	if len(file.SLMChoices) > 0 {
		table.SLMChoices = file.SLMChoices
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that the table can serve every selector.
func (t *RoutingTable) Validate() error {
	if t.DefaultModel == "" {
		return fmt.Errorf("routing table: default_model is required")
	}
	if !slices.Contains(TopicProviders, t.Provider) {
		return fmt.Errorf("routing table: provider %q has no adapter, expected one of %v", t.Provider, TopicProviders)
	}
	for _, tier := range []string{TierSimple, TierGeneral, TierComplex, TierCoding, TierMath} {
		if t.Tiers[tier] == "" {
			return fmt.Errorf("routing table: tier %q has no model", tier)
		}
	}
	prev := 0
	for _, th := range t.LengthThresholds {
		if th.MaxWords <= prev {
			return fmt.Errorf("routing table: length thresholds must be strictly increasing")
		}
		if _, ok := t.Tiers[th.Tier]; !ok {
			return fmt.Errorf("routing table: unknown tier %q in length thresholds", th.Tier)
		}
		prev = th.MaxWords
	}
	return nil
}

// ModelForTier returns the model of a tier, or the default model.
func (t *RoutingTable) ModelForTier(tier string) string {
	if m := t.Tiers[tier]; m != "" {
		return m
	}
	return t.DefaultModel
}

// ModelForTopic maps a classifier label to a model using the table's
// provider column. Unknown labels use the GENERAL topic.
func (t *RoutingTable) ModelForTopic(topic string) string {
	models, ok := t.Topics[strings.ToUpper(topic)]
	if !ok {
		models = t.Topics[TopicGeneral]
	}
	if m := models[t.Provider]; m != "" {
		return m
	}
	return t.DefaultModel
}

// HasSLMChoice reports whether model is one of the SLM choices.
func (t *RoutingTable) HasSLMChoice(model string) bool {
	for _, c := range t.SLMChoices {
		if c.Model == model {
			return true
		}
	}
	return false
}
