package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-council-router/config"
	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/services/router"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization without database", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)
		defer deps.Close(ctx)

		assert.Nil(t, deps.DB)
		assert.NotNil(t, deps.AuditRepo)
		assert.True(t, deps.Audit.GetStats().Started)

		// Only the local provider without API keys
		assert.Equal(t, []string{"ollama"}, deps.Providers.ListProviders())
		assert.Contains(t, deps.Providers.ListModels(), deps.RoutingTable.DefaultModel)

		assert.Len(t, deps.Councils, len(council.Strategies()))
		assert.Equal(t, "majority", deps.Router.DefaultCouncil())
		assert.False(t, deps.AuthMiddleware.Enabled())
	})

	t.Run("hosted providers registered with API keys", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Providers.OpenAI.APIKey = "sk-test"
		cfg.Providers.Anthropic.APIKey = "sk-ant-test"
		cfg.Providers.Google.APIKey = "g-test"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, []string{"anthropic", "google", "ollama", "openai"}, deps.Providers.ListProviders())

		p, err := deps.Providers.GetProviderForModel("gpt-4o-mini")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())

		p, err = deps.Providers.GetProviderForModel("claude-3-haiku-20240307")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())

		// every topic column of the table resolves to its provider
		for _, models := range deps.RoutingTable.Topics {
			for provider, model := range models {
				p, err := deps.Providers.GetProviderForModel(model)
				require.NoError(t, err, model)
				assert.Equal(t, provider, p.Name())
			}
		}
	})

	t.Run("auth enabled with secret", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Auth.JWTSecret = "secret"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.True(t, deps.AuthMiddleware.Enabled())
	})

	t.Run("default council follows configured strategy", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Council.Strategy = "Cascade"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, "cascade", deps.Router.DefaultCouncil())
	})

	t.Run("unknown selector", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Council.Selectors = []string{"heuristics", "oracle"}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize councils")
	})

	t.Run("missing routing table file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RoutingTablePath = filepath.Join(t.TempDir(), "missing.yaml")

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to load routing table")
	})

	t.Run("routing table file", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "routing.yaml")
		require.NoError(t, os.WriteFile(path, []byte("default_model: ollama/llama3:8b\n"), 0o600))

		cfg := testConfig(t)
		cfg.RoutingTablePath = path

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, "ollama/llama3:8b", deps.RoutingTable.DefaultModel)
		assert.Contains(t, deps.Providers.ListModels(), "ollama/llama3:8b")
	})
}

func TestDependenciesDecide(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	// heuristics and length are local selectors, so no network is involved
	decision, err := deps.Router.Decide(ctx, router.InvokeRequest{Prompt: "What is 2+2?", Council: "majority"})
	require.NoError(t, err)
	assert.NotEmpty(t, decision.FinalModel)
	assert.Len(t, decision.Votes, 2)

	_, err = deps.Providers.GetProviderForModel(decision.FinalModel)
	assert.NoError(t, err, "every table model must be executable")
}

func TestDependenciesClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, deps.Close(ctx))
	assert.False(t, deps.Audit.GetStats().Started)

	// Second close is harmless
	assert.NoError(t, deps.Close(ctx))
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Providers: config.ProvidersConfig{
			OpenAI:    config.ProviderConfig{BaseURL: "https://api.openai.com/v1", Timeout: time.Minute},
			Anthropic: config.ProviderConfig{BaseURL: "https://api.anthropic.com", Timeout: time.Minute},
			Google:    config.ProviderConfig{BaseURL: "https://generativelanguage.googleapis.com", Timeout: time.Minute},
			Ollama:    config.ProviderConfig{BaseURL: "http://localhost:11434", Timeout: time.Minute},
		},
		Council: config.CouncilConfig{
			Strategy:        "majority",
			Selectors:       []string{"heuristics", "length"},
			Threshold:       council.DefaultCascadeThreshold,
			SelectorTimeout: 5 * time.Second,
		},
		Audit: config.AuditConfig{
			BufferSize:  100,
			WorkerCount: 1,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}
