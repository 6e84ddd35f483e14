// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

// ContextChunk is a retrieved knowledge-base passage.
// Owned by the orchestrator for one retrieve-generate-evaluate cycle;
// never mutated, only filtered or copied.
type ContextChunk struct {
	DocID      string   `json:"doc_id"`
	DocTypes   []string `json:"doc_type"`
	Text       string   `json:"text"`
	Similarity float64  `json:"similarity_score"`
}

// Strategy names the retrieval/generation path that produced a result.
type Strategy string

const (
	StrategyStandardRAG      Strategy = "standard_rag"
	StrategyComplexRAG       Strategy = "complex_rag"
	StrategyDecomposedRAG    Strategy = "decomposed_rag"
	StrategyLowConfidenceRAG Strategy = "low_confidence_rag"
	StrategyLLMOnly          Strategy = "llm_only"
)

// Evaluation is the quality record for one generation attempt.
// Immutable once produced; attempts are compared by QualityScore only.
type Evaluation struct {
	QualityScore      float64  `json:"quality_score"`
	CitationScore     float64  `json:"citation_score"`
	RelevanceScore    float64  `json:"relevance_score"`
	SupportScore      float64  `json:"support_score"`
	Issues            []string `json:"issues"`
	NeedsRegeneration bool     `json:"needs_regeneration"`
	Recommendation    string   `json:"recommendation"`
}

// SubResult is the outcome of answering one sub-query of a decomposed query.
type SubResult struct {
	SubQuery   string         `json:"sub_query"`
	Answer     string         `json:"answer"`
	Sources    []string       `json:"sources"`
	Evaluation *Evaluation    `json:"evaluation,omitempty"`
	Attempts   int            `json:"attempts"`
	Relevance  float64        `json:"relevance"`
	Chunks     []ContextChunk `json:"-"`
	Warning    string         `json:"warning,omitempty"`
}

// PipelineResult is the externally returned answer object.
// Sources always reflects the document ids actually used as generation
// context, not just the citations found in the answer text.
type PipelineResult struct {
	Answer             string      `json:"answer"`
	Sources            []string    `json:"sources"`
	Strategy           Strategy    `json:"strategy"`
	Confidence         float64     `json:"confidence"`
	Evaluation         *Evaluation `json:"evaluation,omitempty"`
	Warning            string      `json:"warning,omitempty"`
	Info               string      `json:"info,omitempty"`
	GenerationAttempts int         `json:"generation_attempts,omitempty"`
	SynthesisAttempts  int         `json:"synthesis_attempts,omitempty"`
	SubResults         []SubResult `json:"sub_results,omitempty"`
}

// AllowedDocTypes is the closed vocabulary of category tags used to filter
// retrieval. Tags outside this list are silently dropped.
var AllowedDocTypes = []string{
	"architecture", "concept", "database", "deployment",
	"disaster-recovery", "incident", "infrastructure", "networking",
	"observability", "onboarding", "performance", "postmortem",
	"process", "reference", "runbook", "security", "sop",
	"standard", "troubleshooting",
}

// IsAllowedDocType reports whether tag belongs to the closed vocabulary.
func IsAllowedDocType(tag string) bool {
	for _, t := range AllowedDocTypes {
		if t == tag {
			return true
		}
	}
	return false
}
