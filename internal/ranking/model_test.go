package ranking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arclight/postrank/internal/features"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelArtifact(t *testing.T, artifact modelArtifact) string {
	t.Helper()

	data, err := json.Marshal(artifact)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func validArtifact() modelArtifact {
	return modelArtifact{
		FeatureVersion: FeatureVersion,
		Weights:        make([]float64, features.TotalFeatures),
		Bias:           0,
	}
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadModel_VersionMismatch(t *testing.T) {
	artifact := validArtifact()
	artifact.FeatureVersion = FeatureVersion + 1

	_, err := LoadModel(writeModelArtifact(t, artifact))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature version")
}

func TestLoadModel_WrongWeightCount(t *testing.T) {
	artifact := validArtifact()
	artifact.Weights = make([]float64, 5)

	_, err := LoadModel(writeModelArtifact(t, artifact))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestLinearModel_Predict(t *testing.T) {
	model, err := LoadModel(writeModelArtifact(t, validArtifact()))
	require.NoError(t, err)

	vectors := []features.Vector{make(features.Vector, features.TotalFeatures)}
	scores, confidences, err := model.Predict(vectors)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Len(t, confidences, 1)

	// All-zero weights and bias: sigmoid(0)=0.5 with zero margin.
	assert.InDelta(t, 0.5, scores[0], 1e-9)
	assert.InDelta(t, 0.0, confidences[0], 1e-9)
}

func TestLinearModel_PredictRejectsWrongWidth(t *testing.T) {
	model, err := LoadModel(writeModelArtifact(t, validArtifact()))
	require.NoError(t, err)

	_, _, err = model.Predict([]features.Vector{make(features.Vector, 3)})
	assert.Error(t, err)
}

func TestModelRegistry_LoadsOnce(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := NewModelRegistry(logger)

	path := writeModelArtifact(t, validArtifact())

	first, ok := registry.Get(path)
	require.True(t, ok)
	second, ok := registry.Get(path)
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestModelRegistry_MissingArtifact(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	registry := NewModelRegistry(logger)

	model, ok := registry.Get(filepath.Join(t.TempDir(), "missing.json"))
	assert.False(t, ok)
	assert.Nil(t, model)

	// Repeated lookups keep degrading quietly.
	model, ok = registry.Get(filepath.Join(t.TempDir(), "missing.json"))
	assert.False(t, ok)
	assert.Nil(t, model)
}

func TestModelRegistry_EmptyPath(t *testing.T) {
	registry := NewModelRegistry(logrus.New())

	model, ok := registry.Get("")
	assert.False(t, ok)
	assert.Nil(t, model)
}
