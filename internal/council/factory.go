package council

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Strategy names an aggregation policy.
type Strategy string

const (
	StrategyCascade   Strategy = "cascade"
	StrategyMajority  Strategy = "majority"
	StrategyWeighted  Strategy = "weighted"
	StrategyUnanimous Strategy = "unanimous"
	StrategyRandom    Strategy = "random"
)

// Strategies lists every supported strategy in a stable order.
func Strategies() []Strategy {
	return []Strategy{StrategyCascade, StrategyMajority, StrategyWeighted, StrategyUnanimous, StrategyRandom}
}

// ParseStrategy resolves a strategy name case-insensitively. "parallel" is
// accepted as an alias of majority.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if s == "parallel" {
		return StrategyMajority, nil
	}
	for _, known := range Strategies() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Config holds the construction-time settings shared by all strategies.
// Strategies ignore the fields they do not use.
type Config struct {
	DefaultModel    string
	Weights         map[string]float64
	Threshold       float64
	Seed            uint64
	SelectorTimeout time.Duration
}

// New builds a council for the given strategy.
func New(strategy Strategy, selectors []Selector, cfg Config, logger *zap.Logger) (Council, error) {
	switch strategy {
	case StrategyCascade:
		return NewCascade(selectors, cfg.DefaultModel, cfg.Threshold, cfg.SelectorTimeout, logger)
	case StrategyMajority:
		return NewMajority(selectors, cfg.SelectorTimeout, logger)
	case StrategyWeighted:
		return NewWeighted(selectors, cfg.Weights, cfg.SelectorTimeout, logger)
	case StrategyUnanimous:
		return NewUnanimous(selectors, cfg.DefaultModel, cfg.SelectorTimeout, logger)
	case StrategyRandom:
		return NewRandom(selectors, cfg.Seed, cfg.SelectorTimeout, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
