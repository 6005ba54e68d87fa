// Package qualityscore measures output fidelity as the cosine similarity
// between embeddings of a benchmark's input parameters and its structured
// response payload.
package qualityscore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/libtracker"
)

// ShapeError reports embedding vectors of mismatched length.
type ShapeError struct {
	LenA, LenB int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("embedding shape mismatch: %d vs %d", e.LenA, e.LenB)
}

// Scorer embeds both sides with a fixed model and scores their similarity.
type Scorer struct {
	client  modelrepo.EmbedClient
	model   string
	tracker libtracker.ActivityTracker
}

func New(client modelrepo.EmbedClient, model string, tracker libtracker.ActivityTracker) (*Scorer, error) {
	if client == nil {
		return nil, fmt.Errorf("embed client cannot be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model cannot be empty")
	}
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	return &Scorer{client: client, model: model, tracker: tracker}, nil
}

// Outcome carries the score plus both raw vectors for offline analysis.
type Outcome struct {
	Score           float64
	InputEmbedding  []float64
	OutputEmbedding []float64
	Usage           []modelrepo.UsageRecord
}

// Score canonicalizes both payloads, embeds each side and returns their
// clamped cosine similarity.
func (s *Scorer) Score(ctx context.Context, input, output map[string]any) (Outcome, error) {
	reportErr, reportChange, end := s.tracker.Start(ctx, "score", "quality", "model", s.model)
	defer end()

	inputText, err := CanonicalJSON(input)
	if err != nil {
		reportErr(err)
		return Outcome{}, fmt.Errorf("failed to canonicalize input: %w", err)
	}
	outputText, err := CanonicalJSON(output)
	if err != nil {
		reportErr(err)
		return Outcome{}, fmt.Errorf("failed to canonicalize output: %w", err)
	}

	vectors, usage, err := s.client.Embed(ctx, s.model, []string{inputText, outputText}, "similarity", 0)
	if err != nil {
		reportErr(err)
		return Outcome{}, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != 2 {
		err := fmt.Errorf("expected 2 embeddings, got %d", len(vectors))
		reportErr(err)
		return Outcome{}, err
	}

	score, err := CosineSimilarity(vectors[0], vectors[1])
	if err != nil {
		reportErr(err)
		return Outcome{}, err
	}

	reportChange("score_computed", map[string]any{"score": score})
	return Outcome{
		Score:           score,
		InputEmbedding:  vectors[0],
		OutputEmbedding: vectors[1],
		Usage:           []modelrepo.UsageRecord{usage},
	}, nil
}

// CanonicalJSON encodes a map deterministically: keys sorted at every level.
// encoding/json already sorts map keys, so one canonical marshal suffices
// once the value is normalized through a decode round trip.
func CanonicalJSON(value map[string]any) (string, error) {
	normalized, err := normalize(value)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(v))
		for _, k := range keys {
			n, err := normalize(v[k])
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		// Scalars and anything else pass through a JSON round trip so
		// vendor-specific numeric types end up as plain values.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var plain any
		if err := json.Unmarshal(b, &plain); err != nil {
			return nil, err
		}
		return plain, nil
	}
}

// CosineSimilarity returns max(0, min(1, dot(a,b)/(|a||b|))). Vectors of
// different length are a shape error; a zero-magnitude vector scores 0.0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &ShapeError{LenA: len(a), LenB: len(b)}
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0.0, nil
	}

	score := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return math.Max(0, math.Min(1, score)), nil
}
