// Package answer synthesizes grounded, cited answers from retrieved
// evidence using a generation backend.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/generation"
	"github.com/passagehq/passage/pkg/rag"
)

const (
	// DefaultMaxContextChars bounds the evidence text included in a prompt.
	DefaultMaxContextChars = 4000

	// InsufficientAnswer is the fixed response when no evidence survives
	// retrieval. Returned without calling the backend.
	InsufficientAnswer = "No relevant information found for your query."
)

// labelPattern matches inline evidence references such as [1] or [12].
var labelPattern = regexp.MustCompile(`\[(\d+)\]`)

// Config holds synthesizer settings.
type Config struct {
	// MaxContextChars caps the evidence text included in a prompt. Zero
	// means DefaultMaxContextChars.
	MaxContextChars int
}

// Synthesizer turns a question and ranked evidence into a cited answer.
type Synthesizer struct {
	backend         generation.Backend
	maxContextChars int
	logger          *zap.Logger
}

// New creates a Synthesizer over the given generation backend.
func New(backend generation.Backend, c Config, logger *zap.Logger) *Synthesizer {
	maxChars := c.MaxContextChars
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	logger.Debug("creating answer synthesizer", zap.Int("max_context_chars", maxChars))

	return &Synthesizer{
		backend:         backend,
		maxContextChars: maxChars,
		logger:          logger,
	}
}

// Synthesize answers the question strictly from the given evidence. Empty
// evidence short-circuits to the fixed insufficient-information answer with
// zero backend calls. A failed generation is retried once with the evidence
// halved before the error surfaces; callers still hold the evidence either
// way.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []rag.EvidenceItem) (*rag.Answer, error) {
	if len(evidence) == 0 {
		return &rag.Answer{
			Text:     InsufficientAnswer,
			Grounded: false,
		}, nil
	}

	prompt, included := s.prompt(question, evidence)
	text, err := s.backend.Complete(ctx, prompt)
	if err != nil {
		// Oversized prompts are the usual culprit, so halve the evidence
		// and try once more before surfacing the failure.
		shrunk := evidence[:(len(evidence)+1)/2]
		s.logger.Warn("generation failed, retrying with reduced evidence",
			zap.Int("evidence_items", len(evidence)),
			zap.Int("retry_items", len(shrunk)),
			zap.Error(err))

		prompt, included = s.prompt(question, shrunk)
		text, err = s.backend.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		evidence = shrunk
	}

	return &rag.Answer{
		Text:       text,
		Citations:  citations(text, evidence[:included]),
		Evidence:   evidence,
		Confidence: confidence(evidence),
		Grounded:   true,
	}, nil
}

// prompt renders the labeled evidence block and grounding instructions,
// returning the rendered prompt and how many evidence items fit the context
// budget. The top item is always included; later items are dropped whole
// once the budget runs out.
func (s *Synthesizer) prompt(question string, evidence []rag.EvidenceItem) (string, int) {
	var b strings.Builder
	b.WriteString("Answer the question using only the evidence below. ")
	b.WriteString("Cite the evidence you rely on inline by its label, e.g. [1]. ")
	b.WriteString("If the evidence does not contain the answer, say so.\n\nEvidence:\n")

	budget := s.maxContextChars
	included := 0
	for i, item := range evidence {
		entry := fmt.Sprintf("[%d] (document %s)\n%s\n\n", i+1, item.DocumentID, item.Text)
		if i > 0 && len(entry) > budget {
			break
		}
		budget -= len(entry)
		included++
		b.WriteString(entry)
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return b.String(), included
}

// citations maps inline [n] labels back to their evidence items, keeping
// first-appearance order. Labels with no matching evidence item are dropped.
func citations(text string, evidence []rag.EvidenceItem) []rag.Citation {
	matches := labelPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(matches))
	var cites []rag.Citation
	for _, m := range matches {
		label, err := strconv.Atoi(m[1])
		if err != nil || label < 1 || label > len(evidence) || seen[label] {
			continue
		}
		seen[label] = true

		item := evidence[label-1]
		cites = append(cites, rag.Citation{
			Label:      label,
			ChunkID:    item.ChunkID,
			DocumentID: item.DocumentID,
			Text:       item.Text,
		})
	}

	return cites
}

// confidence is the position-weighted mean of evidence scores, so the top
// items dominate: weight 1/(i+1) over the ranked slice.
func confidence(evidence []rag.EvidenceItem) float32 {
	if len(evidence) == 0 {
		return 0
	}

	var weightedSum, totalWeight float64
	for i, item := range evidence {
		weight := 1 / float64(i+1)
		weightedSum += float64(item.Score) * weight
		totalWeight += weight
	}

	return float32(weightedSum / totalWeight)
}
