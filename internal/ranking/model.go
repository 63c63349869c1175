package ranking

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/arclight/postrank/internal/features"
)

// Model is an opaque scoring function over feature vectors. Predict
// returns one score and one confidence per vector, both in [0,1].
type Model interface {
	Predict(vectors []features.Vector) (scores []float64, confidences []float64, err error)
}

// FeatureVersion must match the version the model artifact was trained
// against. Bump only together with the training pipeline.
const FeatureVersion = 2

// modelArtifact is the on-disk JSON format produced by the training
// pipeline: a weight per feature plus a bias, scored through a sigmoid.
type modelArtifact struct {
	FeatureVersion int       `json:"feature_version"`
	Weights        []float64 `json:"weights"`
	Bias           float64   `json:"bias"`
}

type linearModel struct {
	weights []float64
	bias    float64
}

// LoadModel reads and validates a model artifact from disk.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	if artifact.FeatureVersion != FeatureVersion {
		return nil, fmt.Errorf("model feature version %d does not match expected %d", artifact.FeatureVersion, FeatureVersion)
	}
	if len(artifact.Weights) != features.TotalFeatures {
		return nil, fmt.Errorf("model has %d weights, expected %d", len(artifact.Weights), features.TotalFeatures)
	}

	return &linearModel{weights: artifact.Weights, bias: artifact.Bias}, nil
}

func (m *linearModel) Predict(vectors []features.Vector) ([]float64, []float64, error) {
	scores := make([]float64, len(vectors))
	confidences := make([]float64, len(vectors))

	for i, v := range vectors {
		if len(v) != len(m.weights) {
			return nil, nil, fmt.Errorf("feature vector has width %d, model expects %d", len(v), len(m.weights))
		}

		sum := m.bias
		for j, w := range m.weights {
			sum += w * v[j]
		}
		score := sigmoid(sum)
		scores[i] = score

		// Prediction margin as confidence: probabilities near 0.5 are
		// uncertain, near the extremes are confident.
		confidences[i] = math.Abs(score-0.5) * 2
	}

	return scores, confidences, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
