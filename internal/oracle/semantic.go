package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
)

// Semantic scores answers by cosine similarity of their embeddings. The
// answer and every reference are embedded in a single batch.
type Semantic struct {
	provider  embeddings.Provider
	correctAt float64
	partialAt float64
}

var _ Oracle = (*Semantic)(nil)

// NewSemantic returns a Semantic oracle over p with the default thresholds.
// Non-positive thresholds keep the defaults.
func NewSemantic(p embeddings.Provider, correct, partial float64) *Semantic {
	if correct <= 0 {
		correct = DefaultCorrectThreshold
	}
	if partial <= 0 {
		partial = DefaultPartialThreshold
	}
	return &Semantic{provider: p, correctAt: correct, partialAt: partial}
}

// EvaluateAnswer implements Oracle.
func (s *Semantic) EvaluateAnswer(ctx context.Context, answer, correct, _ string) (Verdict, error) {
	score, err := s.bestScore(ctx, answer, []string{correct})
	if err != nil {
		return Error, err
	}
	return classify(score, s.correctAt, s.partialAt), nil
}

// EvaluateResponse implements Oracle.
func (s *Semantic) EvaluateResponse(ctx context.Context, response string, expected, _ []string) Result {
	if len(expected) == 0 {
		v := Incorrect
		if strings.TrimSpace(response) != "" {
			v = PartiallyCorrect
		}
		return OkResult(LanguageAssessment{Verdict: v, Interests: []string{}})
	}
	score, err := s.bestScore(ctx, response, expected)
	if err != nil {
		return FailedResult(err)
	}
	return OkResult(LanguageAssessment{
		Verdict:   classify(score, s.correctAt, s.partialAt),
		Interests: []string{},
	})
}

func (s *Semantic) bestScore(ctx context.Context, answer string, refs []string) (float64, error) {
	if strings.TrimSpace(answer) == "" {
		return 0, nil
	}
	texts := append([]string{answer}, refs...)
	vecs, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("oracle: embed answer: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("oracle: embed answer: got %d vectors, want %d", len(vecs), len(texts))
	}
	best := 0.0
	for _, v := range vecs[1:] {
		best = max(best, embeddings.Cosine(vecs[0], v))
	}
	return best, nil
}
