package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/services"
	"github.com/upb/llm-council-router/services/audit"
	"github.com/upb/llm-council-router/services/providers"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubCouncil struct {
	name     string
	decision *council.Decision
	err      error
}

func (c *stubCouncil) Name() string { return c.name }

func (c *stubCouncil) Decide(ctx context.Context, prompt string) (*council.Decision, error) {
	return c.decision, c.err
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "openai" }

func (m *mockProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*providers.ChatResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) ValidateModel(model string) error { return nil }

func (m *mockProvider) ListModels() []string { return nil }

func (m *mockProvider) GetModelInfo(string) (*providers.ModelInfo, error) {
	return nil, errors.New("unused")
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) GetProviderForModel(model string) (providers.Provider, error) {
	args := m.Called(model)
	if p := args.Get(0); p != nil {
		return p.(providers.Provider), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEstimator struct {
	mock.Mock
}

func (m *mockEstimator) Estimate(model string, promptTokens, completionTokens int) (float64, error) {
	args := m.Called(model, promptTokens, completionTokens)
	return args.Get(0).(float64), args.Error(1)
}

type recordingSink struct {
	mu      sync.Mutex
	records []audit.RouteRecord
	err     error
}

func (s *recordingSink) LogRoute(rec audit.RouteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) last(t *testing.T) audit.RouteRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.records)
	return s.records[len(s.records)-1]
}

func sampleDecision() *council.Decision {
	return &council.Decision{
		FinalModel: "gpt-4o-mini",
		Votes: []council.Vote{
			council.NewVote("heuristics", "gpt-4o-mini", "simple prompt"),
			council.NewVote("length", "gpt-4o-mini", "Prompt length 2 <= 15"),
		},
		WeightedResults: map[string]float64{"gpt-4o-mini": 2},
		Metadata:        map[string]string{"prompt_length": "2", "council": "majority"},
	}
}

type fixture struct {
	service   *Service
	provider  *mockProvider
	resolver  *mockResolver
	estimator *mockEstimator
	sink      *recordingSink
}

func newFixture(t *testing.T, councils map[string]council.Council) *fixture {
	t.Helper()
	f := &fixture{
		provider:  new(mockProvider),
		resolver:  new(mockResolver),
		estimator: new(mockEstimator),
		sink:      &recordingSink{},
	}
	svc, err := NewService(councils, "majority", f.resolver, f.estimator, f.sink, zap.NewNop())
	require.NoError(t, err)

	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(25 * time.Millisecond)
		return tick
	}
	f.service = svc
	return f
}

func TestNewService_Validation(t *testing.T) {
	c := map[string]council.Council{"majority": &stubCouncil{name: "majority"}}

	_, err := NewService(nil, "majority", new(mockResolver), nil, nil, nil)
	assert.Error(t, err)

	_, err = NewService(c, "weighted", new(mockResolver), nil, nil, nil)
	assert.ErrorContains(t, err, "weighted")

	_, err = NewService(c, "majority", nil, nil, nil, nil)
	assert.Error(t, err)

	svc, err := NewService(c, "majority", new(mockResolver), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"majority"}, svc.Councils())
	assert.Equal(t, "majority", svc.DefaultCouncil())
}

func TestService_Invoke(t *testing.T) {
	f := newFixture(t, map[string]council.Council{
		"majority": &stubCouncil{name: "majority", decision: sampleDecision()},
	})

	f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(r *providers.ChatRequest) bool {
		return r.Model == "gpt-4o-mini" && len(r.Messages) == 1 && r.Messages[0].Content == "hello there" && r.MaxTokens == 64
	})).Return(&providers.ChatResponse{
		Choices: []providers.Choice{{Message: providers.Message{Role: "assistant", Content: "General Kenobi"}}},
		Usage:   providers.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}, nil)
	f.estimator.On("Estimate", "gpt-4o-mini", 3, 4).Return(0.000042, nil)

	resp, err := f.service.Invoke(context.Background(), InvokeRequest{
		Prompt: "hello there", RequestID: "req-1", Subject: "alice", MaxTokens: 64,
	})
	require.NoError(t, err)

	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "majority", resp.Council)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "hello there", resp.Prompt)
	assert.Equal(t, "General Kenobi", resp.Text)
	assert.Equal(t, 3, resp.PromptTokens)
	assert.Equal(t, 4, resp.CompletionTokens)
	assert.InDelta(t, 0.000042, resp.Cost, 1e-12)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, int64(25), resp.LatencyMs)
	assert.Len(t, resp.Metadata.Votes, 2)
	assert.Equal(t, 2.0, resp.Metadata.WeightedResults["gpt-4o-mini"])
	assert.Equal(t, []string{"council-router", "openai", "majority"}, resp.Metadata.Tags)

	rec := f.sink.last(t)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "alice", rec.Subject)
	assert.Equal(t, "openai", rec.Provider)
	assert.NoError(t, rec.Err)
	assert.False(t, rec.DryRun)
	assert.Equal(t, 7, rec.PromptTokens+rec.CompletionTokens)

	f.resolver.AssertExpectations(t)
	f.provider.AssertExpectations(t)
	f.estimator.AssertExpectations(t)
}

func TestService_Invoke_CouncilSelection(t *testing.T) {
	weighted := &stubCouncil{name: "weighted", decision: sampleDecision()}
	f := newFixture(t, map[string]council.Council{
		"majority": &stubCouncil{name: "majority", err: errors.New("must not be used")},
		"weighted": weighted,
	})

	f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(&providers.ChatResponse{}, nil)
	f.estimator.On("Estimate", mock.Anything, 0, 0).Return(0.0, nil)

	resp, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi", Council: "weighted"})
	require.NoError(t, err)
	assert.Equal(t, "weighted", resp.Council)
	assert.NotEmpty(t, resp.RequestID, "request id is generated when absent")

	t.Run("parallel is an alias of majority", func(t *testing.T) {
		_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi", Council: "parallel"})
		require.Error(t, err)
		assert.True(t, services.IsNoDecisionError(err))
	})

	t.Run("unknown council", func(t *testing.T) {
		_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi", Council: "oracle"})
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
		assert.Equal(t, "oracle", services.GetErrorDetails(err)["council"])
	})
}

func TestService_Invoke_EmptyPrompt(t *testing.T) {
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority"}})

	for _, prompt := range []string{"", "   \n\t"} {
		_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: prompt})
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	}
	assert.Empty(t, f.sink.records)
}

func TestService_Invoke_NoDecision(t *testing.T) {
	cause := &council.CouncilError{Council: "majority", Err: council.ErrNoValidVotes}
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", err: cause}})

	_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.True(t, services.IsNoDecisionError(err))
	assert.ErrorIs(t, err, council.ErrNoValidVotes)

	rec := f.sink.last(t)
	assert.Error(t, rec.Err)
	assert.Nil(t, rec.Decision)
	f.resolver.AssertNotCalled(t, "GetProviderForModel", mock.Anything)
}

func TestService_Invoke_ContextEnded(t *testing.T) {
	waiting := council.SelectorFunc{SelectorName: "slow", Fn: func(ctx context.Context, prompt string) (council.Vote, error) {
		<-ctx.Done()
		return council.Vote{}, ctx.Err()
	}}

	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		check   func(error) bool
		wantErr error
	}{
		{
			name: "client canceled",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			check:   services.IsCanceledError,
			wantErr: context.Canceled,
		},
		{
			name: "deadline exceeded",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			check:   services.IsTimeoutError,
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		for _, strategy := range []council.Strategy{council.StrategyMajority, council.StrategyCascade} {
			t.Run(tt.name+"/"+string(strategy), func(t *testing.T) {
				c, err := council.New(strategy, []council.Selector{waiting}, council.Config{DefaultModel: "default"}, zap.NewNop())
				require.NoError(t, err)
				f := newFixture(t, map[string]council.Council{"majority": c})

				ctx, cancel := tt.ctx()
				defer cancel()

				_, err = f.service.Invoke(ctx, InvokeRequest{Prompt: "hello"})
				require.Error(t, err)
				assert.True(t, tt.check(err), "got %v", err)
				assert.False(t, services.IsNoDecisionError(err))
				assert.ErrorIs(t, err, tt.wantErr)
				f.resolver.AssertNotCalled(t, "GetProviderForModel", mock.Anything)
			})
		}
	}

	t.Run("canceled during execution", func(t *testing.T) {
		f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})
		ctx, cancel := context.WithCancel(context.Background())
		f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
		f.provider.On("ChatCompletion", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, providers.NewProviderError("openai", "CANCELLED", "request cancelled", 0, false, context.Canceled))

		_, err := f.service.Invoke(ctx, InvokeRequest{Prompt: "hello"})
		require.Error(t, err)
		assert.True(t, services.IsCanceledError(err))
		assert.False(t, services.IsExternalError(err))
	})
}

func TestService_CouncilFailureLogFields(t *testing.T) {
	cause := &council.CouncilError{Council: "majority", Err: council.ErrNoValidVotes}
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", err: cause}})
	core, logs := observer.New(zap.WarnLevel)
	f.service.logger = zap.New(core)

	_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hello", RequestID: "req-42"})
	require.Error(t, err)
	_, err = f.service.Decide(context.Background(), InvokeRequest{Prompt: "hello", RequestID: "req-43"})
	require.Error(t, err)

	entries := logs.FilterMessage("council decision failed").All()
	require.Len(t, entries, 2)
	for i, want := range []string{"req-42", "req-43"} {
		fields := entries[i].ContextMap()
		assert.Equal(t, want, fields["request_id"])
		assert.Equal(t, "majority", fields["council"])
	}
}

func TestService_Invoke_ExecutionFailure(t *testing.T) {
	prompt := strings.Repeat("long prompt ", 20)

	t.Run("provider error", func(t *testing.T) {
		f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})
		boom := providers.NewProviderError("openai", "server_error", "upstream failed", 500, true, nil)
		f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
		f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, boom)

		_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: prompt})
		require.Error(t, err)
		assert.True(t, services.IsExternalError(err))

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "gpt-4o-mini", execErr.Model)
		assert.Equal(t, "openai", execErr.Provider)
		assert.True(t, strings.HasSuffix(execErr.Prompt, "..."))
		assert.LessOrEqual(t, len([]rune(execErr.Prompt)), excerptRunes+3)
		assert.ErrorIs(t, err, boom)

		f.estimator.AssertNotCalled(t, "Estimate", mock.Anything, mock.Anything, mock.Anything)
		assert.Error(t, f.sink.last(t).Err)
	})

	t.Run("no provider for model", func(t *testing.T) {
		f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})
		f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(nil, errors.New("no provider found"))

		_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
		require.Error(t, err)
		assert.True(t, services.IsExternalError(err))

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Empty(t, execErr.Provider)
		assert.Contains(t, execErr.Error(), "unresolved")
	})
}

func TestService_Invoke_CostDegradesToZero(t *testing.T) {
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})
	f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(&providers.ChatResponse{
		Choices: []providers.Choice{{Message: providers.Message{Content: "ok"}}},
		Usage:   providers.Usage{PromptTokens: 1, CompletionTokens: 1},
	}, nil)
	f.estimator.On("Estimate", "gpt-4o-mini", 1, 1).Return(0.0, errors.New("unknown model"))

	resp, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.Cost)
	assert.Equal(t, "ok", resp.Text)
}

func TestService_Invoke_AuditFailureIsIgnored(t *testing.T) {
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})
	f.sink.err = audit.ErrBufferFull
	f.resolver.On("GetProviderForModel", "gpt-4o-mini").Return(f.provider, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(&providers.ChatResponse{}, nil)
	f.estimator.On("Estimate", mock.Anything, mock.Anything, mock.Anything).Return(0.0, nil)

	_, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "hi"})
	assert.NoError(t, err)
}

func TestService_Decide(t *testing.T) {
	f := newFixture(t, map[string]council.Council{"majority": &stubCouncil{name: "majority", decision: sampleDecision()}})

	decision, err := f.service.Decide(context.Background(), InvokeRequest{Prompt: "hi", RequestID: "dry"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", decision.FinalModel)

	rec := f.sink.last(t)
	assert.True(t, rec.DryRun)
	assert.Equal(t, "dry", rec.RequestID)

	f.resolver.AssertNotCalled(t, "GetProviderForModel", mock.Anything)
	f.provider.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestService_WithRealCouncil(t *testing.T) {
	selectors := []council.Selector{
		council.SelectorFunc{SelectorName: "a", Fn: func(ctx context.Context, prompt string) (council.Vote, error) {
			return council.NewVote("a", "ollama/phi3:latest", "local"), nil
		}},
		council.SelectorFunc{SelectorName: "b", Fn: func(ctx context.Context, prompt string) (council.Vote, error) {
			return council.Vote{}, errors.New("classifier offline")
		}},
	}
	majority, err := council.New(council.StrategyMajority, selectors, council.Config{}, zap.NewNop())
	require.NoError(t, err)

	f := newFixture(t, map[string]council.Council{"majority": majority})
	f.resolver.On("GetProviderForModel", "ollama/phi3:latest").Return(f.provider, nil)
	f.provider.On("ChatCompletion", mock.Anything, mock.Anything).Return(&providers.ChatResponse{}, nil)
	f.estimator.On("Estimate", "ollama/phi3:latest", 0, 0).Return(0.0, nil)

	resp, err := f.service.Invoke(context.Background(), InvokeRequest{Prompt: "what is go"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/phi3:latest", resp.Model)
	require.Len(t, resp.Metadata.Votes, 1)
	assert.Equal(t, "1", resp.Metadata.Decision["selectors_failed"])
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short"))
	long := strings.Repeat("é", excerptRunes+10)
	got := excerpt(long)
	assert.Equal(t, excerptRunes+3, len([]rune(got)))
}
