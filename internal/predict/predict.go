// Package predict wraps a pre-trained direction model behind a capability
// interface. Inference mirrors the feature set used at training time:
// latest return, MA5, and MA20 of the adjusted close. Everything fails
// closed: any missing feature, short history, or malformed artifact yields
// Unknown so the alerting pipeline keeps working without a model.
package predict

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"stockwatch/internal/models"
)

// Predictor produces a direction estimate for the next session.
type Predictor interface {
	Predict(s models.Series) models.Direction
}

// Null is the no-model default: always Unknown.
type Null struct{}

func (Null) Predict(models.Series) models.Direction { return models.Unknown }

const numFeatures = 3 // return, MA5, MA20

// node is one decision-tree node in the exported artifact. Leaf nodes carry
// a vote in [0,1]; internal nodes route on feature <= threshold.
type node struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Left      int      `json:"left"`
	Right     int      `json:"right"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// Forest is a trained random-forest classifier exported to JSON by the
// training pipeline. The training procedure itself is out of scope here.
type Forest struct {
	Trees []tree `json:"trees"`
}

// Load reads a forest artifact from disk.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model artifact contains no trees")
	}
	return &f, nil
}

// Predict runs majority voting over the forest. Returns Unknown when the
// series is too short for the feature windows or any feature is NaN.
func (f *Forest) Predict(s models.Series) models.Direction {
	feats, ok := features(s)
	if !ok {
		return models.Unknown
	}

	var sum float64
	var votes int
	for _, t := range f.Trees {
		v, ok := t.eval(feats)
		if !ok {
			continue
		}
		sum += v
		votes++
	}
	if votes == 0 {
		return models.Unknown
	}
	if sum/float64(votes) > 0.5 {
		return models.Up
	}
	return models.Down
}

// features builds [return, MA5, MA20] from the latest bar, matching the
// training feature order. Needs at least MA20-window+1 bars for the return.
func features(s models.Series) ([numFeatures]float64, bool) {
	var out [numFeatures]float64
	n := s.Len()
	if n < models.DefaultLongWindow+1 {
		return out, false
	}
	prev := s.Bars[n-2].Close
	last := s.Bars[n-1].Close
	if prev == 0 || math.IsNaN(prev) || math.IsNaN(last) {
		return out, false
	}
	out[0] = (last - prev) / prev
	out[1] = s.MA(models.DefaultShortWindow, n-1)
	out[2] = s.MA(models.DefaultLongWindow, n-1)
	if math.IsNaN(out[1]) || math.IsNaN(out[2]) {
		return out, false
	}
	return out, true
}

// eval walks one tree. Malformed node references fail the tree, not the run.
func (t tree) eval(feats [numFeatures]float64) (float64, bool) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, false
		}
		n := t.Nodes[idx]
		if n.Leaf != nil {
			return *n.Leaf, true
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return 0, false
		}
		if feats[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	// Cycle in the node graph.
	return 0, false
}
