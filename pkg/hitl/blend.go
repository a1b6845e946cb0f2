package hitl

import (
	"math"

	"github.com/gardar/labdigitize/pkg/extract"
)

const (
	// RuleScore is the constant confidence of the rule-based extractor.
	RuleScore = 0.6
	// ReviewThreshold is the blended confidence below which a field is
	// flagged for human review.
	ReviewThreshold = 0.7

	ruleWeight   = 0.6
	memoryWeight = 0.4
)

// Scores holds blended confidences per patient field.
type Scores struct {
	Patient map[string]float64 `json:"patient"`
}

// Blender combines the rule confidence with the classifier signal.
type Blender struct {
	classifier *Classifier
	threshold  float64
}

// NewBlender returns a Blender flagging fields below threshold
// (ReviewThreshold when zero).
func NewBlender(c *Classifier, threshold float64) *Blender {
	if threshold <= 0 {
		threshold = ReviewThreshold
	}
	return &Blender{classifier: c, threshold: threshold}
}

// Blend scores every present patient field and returns the fields needing
// review as "patient.<field>", in field order. All fields are scored against
// one classifier snapshot. Test observations keep their rule confidence.
func (b *Blender) Blend(p extract.Patient) (Scores, []string) {
	scores := Scores{Patient: make(map[string]float64)}
	review := []string{}
	mem := b.classifier.Memory()
	for _, f := range p.Fields() {
		combined := Combine(RuleScore, mem.Score(f.Name, f.Value))
		scores.Patient[f.Name] = combined
		if combined < b.threshold {
			review = append(review, "patient."+f.Name)
		}
	}
	return scores, review
}

// Combine weights the rule and memory scores and rounds to three decimals.
func Combine(rule, memory float64) float64 {
	return math.Round((ruleWeight*rule+memoryWeight*memory)*1000) / 1000
}
