package risk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/lendrisk/internal/chaindata"
	"github.com/mbd888/lendrisk/internal/circuitbreaker"
	"github.com/mbd888/lendrisk/internal/explain"
	"github.com/mbd888/lendrisk/internal/features"
)

const borrower = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"

// stubStrategy scores with a fixed result or error and counts calls.
type stubStrategy struct {
	name  string
	score float64
	err   error
	calls atomic.Int64
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return newAssessment(address, s.score, s.name, v, explain.NewEngine()), nil
}

// fakeFetcher returns a canned snapshot or error.
type fakeFetcher struct {
	data *chaindata.BlockchainData
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, address string) (*chaindata.BlockchainData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestAssessRisk_CacheRoundTrip(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, score: 40}
	scorer := NewScorer(nil, NewMemoryCache(time.Minute), remote)

	first, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	second, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), remote.calls.Load(), "second call within TTL must hit the cache")
	assert.Equal(t, first.RiskScore, second.RiskScore)
}

func TestAssessRisk_ForceRefreshBypassesCache(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, score: 40}
	scorer := NewScorer(nil, NewMemoryCache(time.Minute), remote)

	_, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	_, err = scorer.AssessRisk(context.Background(), borrower, Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, int64(2), remote.calls.Load())
}

func TestAssessRisk_FallbackToMock(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, err: ErrRemoteScoring}
	local := &stubStrategy{name: TierLocal, err: ErrLocalModelUnavailable}
	mock := NewMockStrategy(explain.NewEngine())

	scorer := NewScorer(nil, NewMemoryCache(time.Minute), remote, local, mock)

	assessment, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	assert.Equal(t, TierMock, assessment.Tier)
	assert.NotEmpty(t, assessment.Warning)
	assert.GreaterOrEqual(t, assessment.RiskScore, 0.0)
	assert.LessOrEqual(t, assessment.RiskScore, 100.0)
	assert.Equal(t, Categorize(assessment.RiskScore), assessment.RiskCategory)
}

func TestAssessRisk_AllTiersExhausted(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, err: ErrRemoteScoring}
	local := &stubStrategy{name: TierLocal, err: ErrLocalModelUnavailable}

	// Mock tier disabled: the chain simply does not contain it.
	scorer := NewScorer(nil, NewMemoryCache(time.Minute), remote, local)

	_, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	assert.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestAssessRisk_FailedTierDoesNotCache(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, err: ErrRemoteScoring}
	cache := NewMemoryCache(time.Minute)
	scorer := NewScorer(nil, cache, remote)

	_, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.Error(t, err)

	_, ok := cache.Get(borrower)
	assert.False(t, ok)
}

func TestAssessRisk_FetchFailureUsesSyntheticData(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, score: 30}
	fetcher := &fakeFetcher{err: chaindata.ErrFetch}
	scorer := NewScorer(fetcher, NewMemoryCache(time.Minute), remote)

	assessment, err := scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	assert.Contains(t, assessment.Warning, "synthetic")
}

func TestAssessRisk_SuppliedDataSkipsFetch(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, score: 30}
	fetcher := &fakeFetcher{err: errors.New("should not be called")}
	scorer := NewScorer(fetcher, NewMemoryCache(time.Minute), remote)

	assessment, err := scorer.AssessRisk(context.Background(), borrower, Options{
		OnChainData: &chaindata.BlockchainData{Address: borrower, Balance: 5},
	})
	require.NoError(t, err)
	assert.Empty(t, assessment.Warning)
}

func TestAssessRisk_AddressNormalized(t *testing.T) {
	remote := &stubStrategy{name: TierRemote, score: 40}
	scorer := NewScorer(nil, NewMemoryCache(time.Minute), remote)

	_, err := scorer.AssessRisk(context.Background(), "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", Options{})
	require.NoError(t, err)

	_, err = scorer.AssessRisk(context.Background(), borrower, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), remote.calls.Load(), "checksummed and lowercase forms share one cache entry")
}

func newTestRemote(url string) *RemoteStrategy {
	return NewRemoteStrategy(url, time.Second, circuitbreaker.New(5, time.Minute), explain.NewEngine())
}

func TestRemoteStrategy_CamelCaseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)

		var req struct {
			Address  string          `json:"address"`
			Features features.Vector `json:"features"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, borrower, req.Address)

		json.NewEncoder(w).Encode(map[string]any{
			"riskScore":    62.5,
			"riskCategory": "High",
			"explanation": map[string]any{
				"topFactors": []map[string]any{
					{"feature": features.RepaymentRatio, "importance": 0.4},
				},
				"recommendations": []map[string]any{},
			},
		})
	}))
	defer srv.Close()

	assessment, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	require.NoError(t, err)

	assert.Equal(t, 62.5, assessment.RiskScore)
	assert.Equal(t, CategoryHigh, assessment.RiskCategory)
	require.Len(t, assessment.Explanation.TopFactors, 1)
	assert.Equal(t, features.RepaymentRatio, assessment.Explanation.TopFactors[0].Feature)
}

func TestRemoteStrategy_SnakeCaseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"risk_score": 81,
			"risk_class": "very_high",
			"risk_factors": []map[string]any{
				{"feature": features.DefaultCount, "importance": 0.5},
			},
			"recommendations": []map[string]any{
				{"id": "improve-repayment", "title": "Repay", "description": "Repay balances", "impact": "high"},
			},
		})
	}))
	defer srv.Close()

	assessment, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	require.NoError(t, err)

	assert.Equal(t, 81.0, assessment.RiskScore)
	// Category is recomputed locally, not trusted from the endpoint.
	assert.Equal(t, CategoryVeryHigh, assessment.RiskCategory)
	require.Len(t, assessment.Explanation.TopFactors, 1)
	assert.Equal(t, features.DefaultCount, assessment.Explanation.TopFactors[0].Feature)
	require.Len(t, assessment.Explanation.Recommendations, 1)
	assert.Equal(t, "improve-repayment", assessment.Explanation.Recommendations[0].ID)
}

func TestRemoteStrategy_ClampsScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"riskScore": 250})
	}))
	defer srv.Close()

	assessment, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, assessment.RiskScore)
}

func TestRemoteStrategy_NoScoreInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrRemoteScoring)
}

func TestRemoteStrategy_ServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrRemoteScoring)
	assert.Equal(t, int64(2), calls.Load(), "5xx responses are retried once")
}

func TestRemoteStrategy_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrRemoteScoring)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRemoteStrategy_CircuitOpenShortCircuits(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	strategy := NewRemoteStrategy(srv.URL, time.Second, circuitbreaker.New(1, time.Minute), explain.NewEngine())

	_, err := strategy.Score(context.Background(), borrower, features.Vector{})
	require.Error(t, err)
	before := calls.Load()

	_, err = strategy.Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrRemoteScoring)
	assert.Equal(t, before, calls.Load(), "open circuit must not reach the endpoint")
}

func TestRemoteStrategy_NoEndpoint(t *testing.T) {
	strategy := newTestRemote("")
	_, err := strategy.Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrRemoteScoring)
}

func TestLocalModelStrategy_NilModel(t *testing.T) {
	strategy := NewLocalModelStrategy(nil, explain.NewEngine())
	_, err := strategy.Score(context.Background(), borrower, features.Vector{})
	assert.ErrorIs(t, err, ErrLocalModelUnavailable)
}

func TestMockStrategy_DeterministicWithWarning(t *testing.T) {
	strategy := NewMockStrategy(explain.NewEngine())
	v := features.Vector{features.RepaymentRatio: 1}

	first, err := strategy.Score(context.Background(), borrower, v)
	require.NoError(t, err)
	second, err := strategy.Score(context.Background(), borrower, v)
	require.NoError(t, err)

	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.NotEmpty(t, first.Warning)
	assert.Equal(t, TierMock, first.Tier)
}
