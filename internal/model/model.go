// Package model defines the persisted entities, enums, and controlled
// vocabularies of the corpus curation pipeline. Relations are plain ID
// foreign keys; traversal happens through store queries, never object
// navigation.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier such as "psg_7f3a…".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Text is a logical work; one-to-many with SourceMaterial witnesses.
type Text struct {
	ID             string    `json:"text_id"`
	CanonicalTitle string    `json:"canonical_title"`
	Region         string    `json:"origin_culture_region"`
	TraditionTags  []string  `json:"tradition_tags"`
	SourceCount    int       `json:"source_count"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SourceMaterial is one physical witness file of a Text. Never deleted.
type SourceMaterial struct {
	ID                 string    `json:"source_id"`
	TextID             string    `json:"text_id"`
	Path               string    `json:"source_path"`
	RawSHA256          string    `json:"source_sha256"`
	NormalizedSHA256   string    `json:"normalized_text_sha256"`
	WitnessGroupID     string    `json:"witness_group_id,omitempty"`
	DuplicateOfID      string    `json:"duplicate_of_source_id,omitempty"`
	DigitizationStatus string    `json:"digitization_status"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// WitnessGroup clusters sources believed to represent the same Text.
type WitnessGroup struct {
	ID              string      `json:"group_id"`
	CanonicalTextID string      `json:"canonical_text_id,omitempty"`
	Status          GroupStatus `json:"status"`
	MatchMethod     MatchMethod `json:"match_method"`
	MatchScore      float64     `json:"match_score"`
	CreatedBy       string      `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// WitnessGroupMember is the (group, source) membership edge.
type WitnessGroupMember struct {
	GroupID          string     `json:"group_id"`
	SourceID         string     `json:"source_id"`
	Role             MemberRole `json:"member_role"`
	ParserStrategy   string     `json:"parser_strategy,omitempty"`
	MembershipReason string     `json:"membership_reason"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ConsolidatedPassage is the merged representation of near-duplicate passages
// across a group's members. Rebuilt wholesale on each consolidation run.
type ConsolidatedPassage struct {
	ID             string         `json:"consolidated_id"`
	GroupID        string         `json:"group_id"`
	MergedText     string         `json:"excerpt_merged"`
	PassageHash    string         `json:"passage_hash"`
	UsabilityScore float64        `json:"usability_score"`
	RelevanceScore float64        `json:"relevance_score"`
	RelevanceState RelevanceState `json:"relevance_state"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ConsolidatedPassageSource links a constituent passage into a consolidated
// entry with the similarity that justified the merge.
type ConsolidatedPassageSource struct {
	ConsolidatedID  string    `json:"consolidated_id"`
	PassageID       string    `json:"passage_id"`
	SourceID        string    `json:"source_id"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Passage is one segmented excerpt, the unit of review, translation, and
// quality scoring.
type Passage struct {
	ID                 string            `json:"passage_id"`
	TextID             string            `json:"text_id"`
	SourceID           string            `json:"source_id"`
	SpanLocator        string            `json:"source_span_locator"`
	Original           string            `json:"excerpt_original"`
	Normalized         string            `json:"excerpt_normalized"`
	NormalizedLanguage string            `json:"normalized_language"`
	ExtractionConf     float64           `json:"extraction_confidence"`
	DetectedLangCode   string            `json:"detected_language_code"`
	DetectedLangLabel  string            `json:"detected_language_label"`
	LangConfidence     float64           `json:"language_detection_confidence"`
	TranslationStatus  TranslationStatus `json:"translation_status"`
	UntranslatedRatio  float64           `json:"untranslated_ratio"`
	NeedsReprocess     bool              `json:"needs_reprocess"`
	ReprocessCount     int               `json:"reprocess_count"`
	LastReprocessAt    *time.Time        `json:"last_reprocess_at,omitempty"`
	TranslationSource  string            `json:"translation_provider"`
	TranslationTraceID string            `json:"translation_trace_id,omitempty"`
	UsabilityScore     float64           `json:"usability_score"`
	RelevanceScore     float64           `json:"relevance_score"`
	RelevanceState     RelevanceState    `json:"relevance_state"`
	QualityNotes       map[string]any    `json:"quality_notes,omitempty"`
	QualityVersion     string            `json:"quality_version"`
	ReviewerState      ReviewerState     `json:"reviewer_state"`
	PublishState       PublishState      `json:"publish_state"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IngestionJob is one attempt-tracked unit of work over a SourceMaterial.
type IngestionJob struct {
	ID             string         `json:"job_id"`
	SourceID       string         `json:"source_id"`
	IdempotencyKey string         `json:"idempotency_key"`
	Status         JobStatus      `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	MaxAttempts    int            `json:"max_attempts"`
	ParserStrategy string         `json:"parser_strategy,omitempty"`
	ParserName     string         `json:"parser_name,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	ErrorCode      JobErrorCode   `json:"error_code,omitempty"`
	ErrorContext   map[string]any `json:"error_context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ReprocessJob mirrors IngestionJob's state machine, scoped to one passage.
type ReprocessJob struct {
	ID                    string         `json:"reprocess_job_id"`
	PassageID             string         `json:"passage_id"`
	IdempotencyKey        string         `json:"idempotency_key"`
	Status                JobStatus      `json:"status"`
	TriggerMode           TriggerMode    `json:"trigger_mode"`
	TriggerReason         string         `json:"trigger_reason"`
	AttemptCount          int            `json:"attempt_count"`
	MaxAttempts           int            `json:"max_attempts"`
	UsedPDFCrossref       bool           `json:"used_pdf_crossref"`
	UsedExternalReference bool           `json:"used_external_reference"`
	LastError             string         `json:"last_error,omitempty"`
	ErrorCode             JobErrorCode   `json:"error_code,omitempty"`
	ErrorContext          map[string]any `json:"error_context,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// JobAttempt is the append-only per-cycle record of a job execution.
type JobAttempt struct {
	ID          string    `json:"attempt_id"`
	JobID       string    `json:"job_id"`
	AttemptNo   int       `json:"attempt_no"`
	Status      JobStatus `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RitualPatternTag is a reviewer-gated ontology annotation on a passage.
type RitualPatternTag struct {
	ID            string        `json:"tag_id"`
	Dimension     string        `json:"ontology_dimension"`
	Term          string        `json:"controlled_term"`
	Confidence    float64       `json:"confidence"`
	EvidenceIDs   []string      `json:"evidence_ids"`
	ReviewerState ReviewerState `json:"reviewer_state"`
	Rationale     string        `json:"rationale_note,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CommonalityLink relates two passages that share a pattern.
type CommonalityLink struct {
	ID              string        `json:"link_id"`
	SourcePassageID string        `json:"source_passage_id"`
	TargetPassageID string        `json:"target_passage_id"`
	RelationType    string        `json:"relation_type"`
	SimilarityScore float64       `json:"weighted_similarity_score"`
	EvidenceIDs     []string      `json:"evidence_ids"`
	ReviewerState   ReviewerState `json:"reviewer_state"`
	DecisionNote    string        `json:"decision_note,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// FlagRecord marks a passage for reviewer attention.
type FlagRecord struct {
	ID            string        `json:"flag_id"`
	PassageID     string        `json:"passage_id"`
	FlagType      string        `json:"flag_type"`
	Severity      string        `json:"severity"`
	Rationale     string        `json:"rationale"`
	EvidenceIDs   []string      `json:"evidence_ids"`
	ReviewerState ReviewerState `json:"reviewer_state"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PendingTerm queues an ontology term proposed outside the controlled
// vocabulary for curator triage.
type PendingTerm struct {
	ID          string    `json:"pending_term_id"`
	Dimension   string    `json:"ontology_dimension"`
	Term        string    `json:"proposed_term"`
	Rationale   string    `json:"rationale"`
	EvidenceIDs []string  `json:"evidence_ids"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProposalTrace is the immutable audit row for every LLM or heuristic
// invocation, success or failure.
type ProposalTrace struct {
	ID             string         `json:"trace_id"`
	ObjectType     string         `json:"object_type"`
	ObjectID       string         `json:"object_id"`
	ProposalType   string         `json:"proposal_type"`
	IdempotencyKey string         `json:"idempotency_key"`
	ModelName      string         `json:"model_name"`
	PromptVersion  string         `json:"prompt_version"`
	PromptHash     string         `json:"prompt_hash"`
	ResponseHash   string         `json:"response_hash"`
	Usage          map[string]any `json:"usage,omitempty"`
	RetryCount     int            `json:"retry_count"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TranslationRevision records one attempted variant translation during
// reprocessing. Append-only.
type TranslationRevision struct {
	ID                string         `json:"revision_id"`
	PassageID         string         `json:"passage_id"`
	AttemptNo         int            `json:"attempt_no"`
	SourceVariant     SourceVariant  `json:"source_variant"`
	InputExcerpt      string         `json:"input_excerpt"`
	TranslatedExcerpt string         `json:"translated_excerpt"`
	DetectedLangCode  string         `json:"detected_language_code"`
	DetectedLangLabel string         `json:"detected_language_label"`
	UntranslatedRatio float64        `json:"untranslated_ratio"`
	QualityDecision   string         `json:"quality_decision"`
	Provenance        map[string]any `json:"provenance,omitempty"`
	TraceID           string         `json:"translation_trace_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ReviewDecisionRecord is the append-only log of a review verdict.
type ReviewDecisionRecord struct {
	ID            string         `json:"decision_id"`
	ObjectKind    ReviewKind     `json:"object_kind"`
	ObjectID      string         `json:"object_id"`
	ReviewerID    string         `json:"reviewer_id"`
	Decision      ReviewDecision `json:"decision"`
	Notes         string         `json:"notes,omitempty"`
	PreviousState string         `json:"previous_state"`
	NewState      string         `json:"new_state"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AuditEvent is an append-only state-transition record.
type AuditEvent struct {
	ID            string         `json:"event_id"`
	Actor         string         `json:"actor"`
	Action        string         `json:"action"`
	ObjectType    string         `json:"object_type"`
	ObjectID      string         `json:"object_id"`
	CorrelationID string         `json:"correlation_id"`
	PreviousState string         `json:"previous_state,omitempty"`
	NewState      string         `json:"new_state,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Artifact caches derived text per source, written once per artifact type.
type Artifact struct {
	ID           string    `json:"artifact_id"`
	SourceID     string    `json:"source_id"`
	ArtifactType string    `json:"artifact_type"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}
