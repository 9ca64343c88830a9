package screening

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/slr-pipeline-service/internal/domain"
	"github.com/helixir/slr-pipeline-service/internal/llm"
)

// stubEmbedder returns canned vectors keyed by input text; unknown texts
// get a zero vector.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int32
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0}
		}
	}
	return out, nil
}

func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Model() string    { return "stub-embedding" }

// stubCompleter replays a canned response and records the last prompt.
type stubCompleter struct {
	response   string
	err        error
	lastPrompt string
	calls      int32
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastPrompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResult{Content: s.response, Model: "stub-model"}, nil
}

func (s *stubCompleter) Provider() string { return "stub" }
func (s *stubCompleter) Model() string    { return "stub-model" }

func paperText(p *domain.Paper) string {
	return p.Title + ". " + p.Abstract
}

var testCriteria = domain.ScreeningCriteria{
	ResearchQuestion:  "Does telehealth improve chronic disease outcomes?",
	InclusionCriteria: []string{"telehealth interventions for chronic disease"},
	ExclusionCriteria: []string{"exclude pediatric populations"},
}

func TestEngine_ScreenBatch(t *testing.T) {
	relevant := &domain.Paper{
		CanonicalID: "doi:10.1/relevant",
		Title:       "Telehealth for diabetes management",
		Abstract:    "A trial of remote monitoring.",
	}
	irrelevant := &domain.Paper{
		CanonicalID: "doi:10.1/irrelevant",
		Title:       "Quantum chromodynamics on the lattice",
		Abstract:    "Gauge theory simulations.",
	}
	borderline := &domain.Paper{
		CanonicalID: "doi:10.1/borderline",
		Title:       "Digital health adoption barriers",
		Abstract:    "A survey of clinicians.",
	}

	newEmbedder := func() *stubEmbedder {
		return &stubEmbedder{vectors: map[string][]float32{
			testCriteria.InclusionCriteria[0]: {1, 0},
			paperText(relevant):               {1, 0},
			paperText(irrelevant):             {0, 1},
			paperText(borderline):             {0.6, 0.8},
		}}
	}

	t.Run("semantic thresholds decide clear cases", func(t *testing.T) {
		eng, err := NewEngine(newEmbedder(), nil, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		rel, irr := *relevant, *irrelevant
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{&rel, &irr}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningInclude, decisions[0].Status)
		assert.Equal(t, domain.PhaseSemantic, decisions[0].Phase)
		assert.InDelta(t, 1.0, decisions[0].Confidence, 1e-6)

		assert.Equal(t, domain.ScreeningExclude, decisions[1].Status)
		assert.Equal(t, domain.PhaseSemantic, decisions[1].Phase)
		assert.InDelta(t, 1.0, decisions[1].Confidence, 1e-6)

		assert.Equal(t, domain.ScreeningInclude, rel.ScreeningStatus)
		assert.Equal(t, domain.ScreeningExclude, irr.ScreeningStatus)
	})

	t.Run("borderline papers go to llm arbitration", func(t *testing.T) {
		completer := &stubCompleter{response: "DECISION: INCLUDE\nCONFIDENCE: 0.9\nREASON: Matches the research question."}
		eng, err := NewEngine(newEmbedder(), completer, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		b := *borderline
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{&b}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningInclude, decisions[0].Status)
		assert.Equal(t, domain.PhaseLLM, decisions[0].Phase)
		assert.InDelta(t, 0.9, decisions[0].Confidence, 1e-9)
		assert.Equal(t, "Matches the research question.", decisions[0].Reason)
		assert.Equal(t, int32(1), atomic.LoadInt32(&completer.calls))
		assert.Contains(t, completer.lastPrompt, testCriteria.ResearchQuestion)
		assert.Contains(t, completer.lastPrompt, borderline.Title)
	})

	t.Run("low llm confidence escalates to human review", func(t *testing.T) {
		completer := &stubCompleter{response: "DECISION: EXCLUDE\nCONFIDENCE: 0.4\nREASON: Unclear population."}
		eng, err := NewEngine(newEmbedder(), completer, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		b := *borderline
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{&b}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningUncertain, decisions[0].Status)
		assert.Equal(t, domain.PhaseHumanReview, decisions[0].Phase)
		assert.Contains(t, decisions[0].Reason, "requires human review")
	})

	t.Run("uncertain llm decision escalates regardless of confidence", func(t *testing.T) {
		completer := &stubCompleter{response: "DECISION: UNCERTAIN\nCONFIDENCE: 0.95\nREASON: Ambiguous scope."}
		eng, err := NewEngine(newEmbedder(), completer, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		b := *borderline
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{&b}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningUncertain, decisions[0].Status)
		assert.Equal(t, domain.PhaseHumanReview, decisions[0].Phase)
	})

	t.Run("borderline without completer escalates", func(t *testing.T) {
		eng, err := NewEngine(newEmbedder(), nil, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		b := *borderline
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{&b}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningUncertain, decisions[0].Status)
		assert.Equal(t, domain.PhaseHumanReview, decisions[0].Phase)
	})

	t.Run("rule filtered papers never reach the embedder", func(t *testing.T) {
		embedder := newEmbedder()
		eng, err := NewEngine(embedder, nil, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		editorial := &domain.Paper{Title: "On the state of the field", DocumentType: "Editorial"}
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{editorial}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningExclude, decisions[0].Status)
		assert.Equal(t, domain.PhaseRuleBased, decisions[0].Phase)
		assert.Zero(t, atomic.LoadInt32(&embedder.calls))
	})

	t.Run("criterion embeddings are cached across batches", func(t *testing.T) {
		embedder := newEmbedder()
		eng, err := NewEngine(embedder, nil, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		rel1, rel2 := *relevant, *relevant
		_, err = eng.ScreenBatch(context.Background(), []*domain.Paper{&rel1}, testCriteria)
		require.NoError(t, err)
		_, err = eng.ScreenBatch(context.Background(), []*domain.Paper{&rel2}, testCriteria)
		require.NoError(t, err)

		// One criteria call plus one paper call per batch.
		assert.Equal(t, int32(3), atomic.LoadInt32(&embedder.calls))
	})

	t.Run("cancellation keeps decisions made before arbitration", func(t *testing.T) {
		completer := &stubCompleter{response: "DECISION: INCLUDE\nCONFIDENCE: 0.9\nREASON: Relevant."}
		eng, err := NewEngine(newEmbedder(), completer, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rel, b := *relevant, *borderline
		decisions, err := eng.ScreenBatch(ctx, []*domain.Paper{&rel, &b}, testCriteria)

		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, decisions, 2)

		// The semantic decision survives; the borderline paper was never
		// arbitrated and is escalated instead of dropped.
		assert.Equal(t, domain.ScreeningInclude, decisions[0].Status)
		assert.Equal(t, domain.PhaseSemantic, decisions[0].Phase)
		assert.Equal(t, domain.ScreeningUncertain, decisions[1].Status)
		assert.Equal(t, domain.PhaseHumanReview, decisions[1].Phase)
		assert.Zero(t, atomic.LoadInt32(&completer.calls))

		assert.Equal(t, domain.ScreeningInclude, rel.ScreeningStatus)
		assert.Equal(t, domain.ScreeningUncertain, b.ScreeningStatus)
	})

	t.Run("keyword fallback without embedder", func(t *testing.T) {
		eng, err := NewEngine(nil, nil, DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)

		match := &domain.Paper{
			Title:    "Telehealth interventions for chronic disease",
			Abstract: "All the right words.",
		}
		decisions, err := eng.ScreenBatch(context.Background(), []*domain.Paper{match}, testCriteria)

		require.NoError(t, err)
		assert.Equal(t, domain.ScreeningInclude, decisions[0].Status)
		assert.Equal(t, domain.PhaseSemantic, decisions[0].Phase)
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{LowThreshold: 0.7, HighThreshold: 0.5, ConfidenceFloor: 0.6}.Validate())
	assert.Error(t, Config{LowThreshold: -0.1, HighThreshold: 0.5, ConfidenceFloor: 0.6}.Validate())
	assert.Error(t, Config{LowThreshold: 0.5, HighThreshold: 1.2, ConfidenceFloor: 0.6}.Validate())
	assert.Error(t, Config{LowThreshold: 0.5, HighThreshold: 0.7, ConfidenceFloor: 1.5}.Validate())
}
