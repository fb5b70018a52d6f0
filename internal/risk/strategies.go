package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/lendrisk/internal/circuitbreaker"
	"github.com/mbd888/lendrisk/internal/explain"
	"github.com/mbd888/lendrisk/internal/features"
	"github.com/mbd888/lendrisk/internal/idgen"
	"github.com/mbd888/lendrisk/internal/metrics"
	"github.com/mbd888/lendrisk/internal/model"
	"github.com/mbd888/lendrisk/internal/retry"
	"github.com/mbd888/lendrisk/internal/synthetic"
)

// Strategy is one tier of the scoring chain. The scorer walks an ordered
// list of strategies until one succeeds.
type Strategy interface {
	Name() string
	Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error)
}

// newAssessment assembles the normalized result all strategies return.
func newAssessment(address string, score float64, tier string, v features.Vector, engine *explain.Engine) *RiskAssessment {
	score = ClampScore(score)
	factors := engine.RankFactors(v)

	return &RiskAssessment{
		ID:           idgen.WithPrefix("asmt_"),
		Address:      address,
		RiskScore:    score,
		RiskCategory: Categorize(score),
		Explanation: Explanation{
			TopFactors:      factors,
			Recommendations: engine.Recommendations(score, v, factors),
		},
		Timestamp: time.Now(),
		Tier:      tier,
	}
}

// RemoteStrategy scores against the model-serving HTTP endpoint.
type RemoteStrategy struct {
	endpoint string
	client   *http.Client
	breaker  *circuitbreaker.Breaker
	engine   *explain.Engine
}

// NewRemoteStrategy creates a remote strategy for the given endpoint base
// URL. The timeout bounds each scoring request.
func NewRemoteStrategy(endpoint string, timeout time.Duration, breaker *circuitbreaker.Breaker, engine *explain.Engine) *RemoteStrategy {
	return &RemoteStrategy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		engine:   engine,
	}
}

func (s *RemoteStrategy) Name() string { return TierRemote }

// remoteResponse accepts both response shapes the scoring endpoint is known
// to produce: the camelCase assessment shape and the snake_case model-server
// shape. Field-name normalization is our job, not the endpoint's.
type remoteResponse struct {
	RiskScore    *float64 `json:"riskScore"`
	RiskCategory string   `json:"riskCategory"`
	Explanation  *struct {
		TopFactors      []explain.Factor         `json:"topFactors"`
		Recommendations []explain.Recommendation `json:"recommendations"`
	} `json:"explanation"`
	Warning string `json:"warning"`

	RiskScoreSnake  *float64                 `json:"risk_score"`
	RiskClass       string                   `json:"risk_class"`
	RiskFactors     []explain.Factor         `json:"risk_factors"`
	Recommendations []explain.Recommendation `json:"recommendations"`
}

func (s *RemoteStrategy) Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrRemoteScoring)
	}
	if !s.breaker.Allow(s.endpoint) {
		return nil, fmt.Errorf("%w: circuit open", ErrRemoteScoring)
	}

	body, err := json.Marshal(map[string]any{
		"address":  address,
		"features": v,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteScoring, err)
	}

	timer := prometheus.NewTimer(metrics.RemoteScoringDuration)
	defer timer.ObserveDuration()

	var parsed remoteResponse
	err = retry.Do(ctx, 2, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/predict", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("scoring endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("scoring endpoint returned %d", resp.StatusCode))
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &parsed)
	})
	if err != nil {
		s.breaker.RecordFailure(s.endpoint)
		return nil, fmt.Errorf("%w: %v", ErrRemoteScoring, err)
	}
	s.breaker.RecordSuccess(s.endpoint)

	return s.normalize(address, v, &parsed)
}

// normalize converts either response shape into a RiskAssessment. Score and
// category are always recomputed locally so remote inconsistencies cannot
// violate the score/category relation.
func (s *RemoteStrategy) normalize(address string, v features.Vector, r *remoteResponse) (*RiskAssessment, error) {
	var score float64
	switch {
	case r.RiskScore != nil:
		score = *r.RiskScore
	case r.RiskScoreSnake != nil:
		score = *r.RiskScoreSnake
	default:
		return nil, fmt.Errorf("%w: response carried no score", ErrRemoteScoring)
	}

	a := newAssessment(address, score, TierRemote, v, s.engine)
	a.Warning = r.Warning

	// Prefer the endpoint's own explanation when it supplied one.
	if r.Explanation != nil && len(r.Explanation.TopFactors) > 0 {
		a.Explanation.TopFactors = r.Explanation.TopFactors
		a.Explanation.Recommendations = r.Explanation.Recommendations
	} else if len(r.RiskFactors) > 0 {
		a.Explanation.TopFactors = r.RiskFactors
		if len(r.Recommendations) > 0 {
			a.Explanation.Recommendations = r.Recommendations
		}
	}

	return a, nil
}

// LocalModelStrategy scores with the locally cached model artifact.
type LocalModelStrategy struct {
	model  *model.Model
	engine *explain.Engine
}

// NewLocalModelStrategy wraps a loaded model. A nil model is allowed and
// reports unavailable at scoring time, so startup never depends on the
// artifact being present.
func NewLocalModelStrategy(m *model.Model, engine *explain.Engine) *LocalModelStrategy {
	return &LocalModelStrategy{model: m, engine: engine}
}

func (s *LocalModelStrategy) Name() string { return TierLocal }

func (s *LocalModelStrategy) Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error) {
	if s.model == nil {
		return nil, ErrLocalModelUnavailable
	}

	// Model outputs a default probability in [0,1]; scale to the score range.
	score := s.model.Predict(v) * 100
	return newAssessment(address, score, TierLocal, v, s.engine), nil
}

// MockStrategy produces a deterministic seed-derived score. It is the tier
// of last resort and only participates when mock mode is enabled.
type MockStrategy struct {
	engine *explain.Engine
}

// NewMockStrategy creates the deterministic mock scoring tier.
func NewMockStrategy(engine *explain.Engine) *MockStrategy {
	return &MockStrategy{engine: engine}
}

func (s *MockStrategy) Name() string { return TierMock }

func (s *MockStrategy) Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error) {
	a := newAssessment(address, synthetic.MockScore(address, v), TierMock, v, s.engine)
	a.Warning = "score produced by deterministic mock model"
	return a, nil
}
