// Package model loads and evaluates a locally cached scoring model.
//
// The model is a logistic regression exported as a JSON artifact: per-feature
// weights, a bias term, and the min/max bounds used for scaling at training
// time. It exists so scoring can continue when the remote endpoint is down.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/mbd888/lendrisk/internal/features"
)

// artifact is the on-disk shape of an exported model.
type artifact struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
	Mins    map[string]float64 `json:"mins"`
	Maxs    map[string]float64 `json:"maxs"`
}

// Model is a loaded scoring model. It is immutable and safe for concurrent
// use.
type Model struct {
	weights map[string]float64
	bias    float64
	mins    map[string]float64
	maxs    map[string]float64
}

// Load reads a model artifact from disk. A missing or malformed file is an
// error for the caller to handle, never a panic; the engine treats it as
// "no local model" and falls through to the next scoring tier.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if len(a.Weights) == 0 {
		return nil, fmt.Errorf("model %s has no weights", path)
	}

	return &Model{
		weights: a.Weights,
		bias:    a.Bias,
		mins:    a.Mins,
		maxs:    a.Maxs,
	}, nil
}

// Predict evaluates the model against a feature vector and returns a default
// probability in [0,1]. Features without a weight are ignored; features
// missing from the vector contribute their scaled zero value.
func (m *Model) Predict(v features.Vector) float64 {
	z := m.bias
	for feature, w := range m.weights {
		z += w * m.scale(feature, v[feature])
	}
	return 1 / (1 + math.Exp(-z))
}

// scale maps a raw feature value into [0,1] using the training-time bounds.
// Features without bounds pass through unscaled.
func (m *Model) scale(feature string, value float64) float64 {
	lo, hasLo := m.mins[feature]
	hi, hasHi := m.maxs[feature]
	if !hasLo || !hasHi || hi <= lo {
		return value
	}
	scaled := (value - lo) / (hi - lo)
	if scaled < 0 {
		return 0
	}
	if scaled > 1 {
		return 1
	}
	return scaled
}
