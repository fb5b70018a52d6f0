package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/lendrisk/internal/features"
)

func writeModel(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeModel(t, "{not json"))
	assert.Error(t, err)
}

func TestLoad_NoWeights(t *testing.T) {
	_, err := Load(writeModel(t, `{"bias": 0.5}`))
	assert.Error(t, err)
}

func TestPredict_Bounds(t *testing.T) {
	m, err := Load(writeModel(t, `{
		"weights": {"default_count": 4, "repayment_ratio": -4},
		"bias": 0,
		"mins": {"default_count": 0, "repayment_ratio": 0},
		"maxs": {"default_count": 5, "repayment_ratio": 1}
	}`))
	require.NoError(t, err)

	worst := m.Predict(features.Vector{
		features.DefaultCount:   5,
		features.RepaymentRatio: 0,
	})
	best := m.Predict(features.Vector{
		features.DefaultCount:   0,
		features.RepaymentRatio: 1,
	})

	assert.Greater(t, worst, 0.9)
	assert.Less(t, best, 0.1)
	assert.GreaterOrEqual(t, best, 0.0)
	assert.LessOrEqual(t, worst, 1.0)
}

func TestPredict_ScalingClampsOutOfRange(t *testing.T) {
	m, err := Load(writeModel(t, `{
		"weights": {"default_count": 2},
		"bias": 0,
		"mins": {"default_count": 0},
		"maxs": {"default_count": 5}
	}`))
	require.NoError(t, err)

	atMax := m.Predict(features.Vector{features.DefaultCount: 5})
	beyond := m.Predict(features.Vector{features.DefaultCount: 500})
	assert.Equal(t, atMax, beyond)
}

func TestPredict_MissingFeatureUsesZero(t *testing.T) {
	m, err := Load(writeModel(t, `{
		"weights": {"utilization_ratio": 3},
		"bias": -1,
		"mins": {"utilization_ratio": 0},
		"maxs": {"utilization_ratio": 1}
	}`))
	require.NoError(t, err)

	empty := m.Predict(features.Vector{})
	explicit := m.Predict(features.Vector{features.UtilizationRatio: 0})
	assert.Equal(t, explicit, empty)
}

func TestPredict_BiasOnly(t *testing.T) {
	m, err := Load(writeModel(t, `{"weights": {"loan_count": 0}, "bias": 0}`))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, m.Predict(features.Vector{}), 1e-9)
}
