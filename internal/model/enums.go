package model

// JobStatus is the lifecycle state shared by ingestion and reprocess jobs.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobRunning    JobStatus = "running"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// TranslationStatus describes where a passage sits in the translation
// quality gate.
type TranslationStatus string

const (
	TranslationTranslated     TranslationStatus = "translated"
	TranslationNeedsReprocess TranslationStatus = "needs_reprocess"
	TranslationUnresolved     TranslationStatus = "unresolved"
)

// RelevanceState classifies a passage's topical fit to the curation domain.
type RelevanceState string

const (
	RelevanceAccepted   RelevanceState = "accepted"
	RelevanceBorderline RelevanceState = "borderline"
	RelevanceFiltered   RelevanceState = "filtered"
)

// ReviewerState tracks the human review lifecycle of an annotation or passage.
type ReviewerState string

const (
	ReviewerProposed      ReviewerState = "proposed"
	ReviewerApproved      ReviewerState = "approved"
	ReviewerRejected      ReviewerState = "rejected"
	ReviewerNeedsRevision ReviewerState = "needs_revision"
)

// PublishState is derived from ReviewerState: only approved content may be
// eligible or published.
type PublishState string

const (
	PublishBlocked   PublishState = "blocked"
	PublishEligible  PublishState = "eligible"
	PublishPublished PublishState = "published"
)

// ReviewDecision is an operator's verdict on a reviewable object.
type ReviewDecision string

const (
	DecisionApprove       ReviewDecision = "approve"
	DecisionReject        ReviewDecision = "reject"
	DecisionNeedsRevision ReviewDecision = "needs_revision"
)

// ReviewKind enumerates the fixed set of reviewable entity kinds.
type ReviewKind string

const (
	ReviewPassage ReviewKind = "passage"
	ReviewTag     ReviewKind = "tag"
	ReviewLink    ReviewKind = "link"
	ReviewFlag    ReviewKind = "flag"
)

// GroupStatus is the witness group lifecycle state.
type GroupStatus string

const (
	GroupActive      GroupStatus = "active"
	GroupNeedsReview GroupStatus = "needs_review"
	GroupArchived    GroupStatus = "archived"
)

// MatchMethod records how a source was matched into a witness group.
type MatchMethod string

const (
	MatchExactHash      MatchMethod = "exact_hash"
	MatchNormalizedHash MatchMethod = "normalized_hash"
	MatchFuzzy          MatchMethod = "fuzzy"
)

// MemberRole distinguishes the canonical witness from alternates.
type MemberRole string

const (
	RolePrimary   MemberRole = "primary"
	RoleSecondary MemberRole = "secondary"
)

// SourceVariant identifies which text variant a reprocess attempt used.
type SourceVariant string

const (
	VariantOriginal          SourceVariant = "original_parse"
	VariantPDFCrossref       SourceVariant = "pdf_crossref"
	VariantExternalReference SourceVariant = "external_reference"
)

// TriggerMode records why a reprocess job was enqueued.
type TriggerMode string

const (
	TriggerManual        TriggerMode = "manual"
	TriggerAutoThreshold TriggerMode = "auto_threshold"
)

// DedupeStatus is the outcome of fingerprint resolution.
type DedupeStatus string

const (
	DedupeExactDuplicate   DedupeStatus = "exact_duplicate"
	DedupeAlternateWitness DedupeStatus = "alternate_witness"
	DedupeNew              DedupeStatus = "new"
)

// JobErrorCode is the fixed taxonomy for classified job failures.
type JobErrorCode string

const (
	ErrSourceMissing        JobErrorCode = "source_missing"
	ErrUnsupportedExtension JobErrorCode = "unsupported_extension"
	ErrParseNoText          JobErrorCode = "parse_no_text"
	ErrProposalFailure      JobErrorCode = "proposal_failure"
	ErrJobProcessing        JobErrorCode = "job_processing_error"

	ErrPassageNotFound     JobErrorCode = "passage_not_found"
	ErrTranslationFailure  JobErrorCode = "translation_failure"
	ErrReferenceLookup     JobErrorCode = "reference_lookup_failure"
	ErrReprocessFailure    JobErrorCode = "reprocess_failure"
	ErrTranslationBelowBar JobErrorCode = "translation_below_quality_threshold"
	ErrUnresolved          JobErrorCode = "translation_unresolved"
)
