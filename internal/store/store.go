// Package store persists the curation corpus. Two implementations exist:
// SQLite for single-operator installs and PostgreSQL for shared deployments.
// Lookups return (nil, nil) when the row does not exist; updates return an
// error when zero rows were affected.
package store

import (
	"context"

	"github.com/three-lanterns/curator/internal/model"
)

// PassageFilter specifies criteria for listing passages.
type PassageFilter struct {
	TextID            string                  `json:"text_id,omitempty"`
	SourceID          string                  `json:"source_id,omitempty"`
	TranslationStatus model.TranslationStatus `json:"translation_status,omitempty"`
	RelevanceState    model.RelevanceState    `json:"relevance_state,omitempty"`
	ReviewerState     model.ReviewerState     `json:"reviewer_state,omitempty"`
	NeedsReprocess    *bool                   `json:"needs_reprocess,omitempty"`
	Limit             int                     `json:"limit,omitempty"`
	Offset            int                     `json:"offset,omitempty"`
}

// JobFilter specifies criteria for listing ingestion or reprocess jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// AuditFilter specifies criteria for listing audit events.
type AuditFilter struct {
	ObjectID      string `json:"object_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Action        string `json:"action,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

// PipelineStats summarizes corpus and queue state for the status command.
type PipelineStats struct {
	Texts             int                             `json:"texts"`
	Sources           int                             `json:"sources"`
	Passages          int                             `json:"passages"`
	WitnessGroups     int                             `json:"witness_groups"`
	IngestionByStatus map[model.JobStatus]int         `json:"ingestion_by_status"`
	ReprocessByStatus map[model.JobStatus]int         `json:"reprocess_by_status"`
	TranslationStates map[model.TranslationStatus]int `json:"translation_states"`
	RelevanceStates   map[model.RelevanceState]int    `json:"relevance_states"`
}

// Store defines the persistence interface for the curation pipeline.
type Store interface {
	// Texts
	CreateText(ctx context.Context, text *model.Text) error
	GetText(ctx context.Context, id string) (*model.Text, error)
	UpdateText(ctx context.Context, text *model.Text) error
	SearchTexts(ctx context.Context, query string, limit int) ([]model.Text, error)

	// Source materials
	CreateSource(ctx context.Context, source *model.SourceMaterial) error
	GetSource(ctx context.Context, id string) (*model.SourceMaterial, error)
	UpdateSource(ctx context.Context, source *model.SourceMaterial) error
	SourceByPath(ctx context.Context, path string) (*model.SourceMaterial, error)
	SourcesByRawHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
	SourcesByNormalizedHash(ctx context.Context, hash string) ([]model.SourceMaterial, error)
	SourcesByTextID(ctx context.Context, textID string) ([]model.SourceMaterial, error)
	RecentSources(ctx context.Context, limit int) ([]model.SourceMaterial, error)

	// Witness groups
	CreateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error
	GetWitnessGroup(ctx context.Context, id string) (*model.WitnessGroup, error)
	UpdateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error
	ListWitnessGroups(ctx context.Context, status model.GroupStatus, limit int) ([]model.WitnessGroup, error)
	CreateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error
	GetGroupMember(ctx context.Context, groupID, sourceID string) (*model.WitnessGroupMember, error)
	UpdateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error
	ListGroupMembers(ctx context.Context, groupID string) ([]model.WitnessGroupMember, error)

	// Consolidated passages
	DeleteConsolidatedPassages(ctx context.Context, groupID string) error
	CreateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error
	UpdateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error
	ListConsolidatedPassages(ctx context.Context, groupID string) ([]model.ConsolidatedPassage, error)
	CreateConsolidatedPassageSource(ctx context.Context, link *model.ConsolidatedPassageSource) error

	// Passages
	CreatePassage(ctx context.Context, passage *model.Passage) error
	GetPassage(ctx context.Context, id string) (*model.Passage, error)
	UpdatePassage(ctx context.Context, passage *model.Passage) error
	ListPassages(ctx context.Context, filter PassageFilter) ([]model.Passage, error)
	PassagesBySourceIDs(ctx context.Context, sourceIDs []string) ([]model.Passage, error)
	ListPeerPassages(ctx context.Context, limit int) ([]model.Passage, error)
	SearchPassages(ctx context.Context, query string, limit int) ([]model.Passage, error)

	// Ingestion jobs
	CreateIngestionJob(ctx context.Context, job *model.IngestionJob) error
	GetIngestionJob(ctx context.Context, id string) (*model.IngestionJob, error)
	IngestionJobByKey(ctx context.Context, idempotencyKey string) (*model.IngestionJob, error)
	UpdateIngestionJob(ctx context.Context, job *model.IngestionJob) error
	ClaimNextIngestionJob(ctx context.Context) (*model.IngestionJob, error)
	ListIngestionJobs(ctx context.Context, filter JobFilter) ([]model.IngestionJob, error)

	// Reprocess jobs
	CreateReprocessJob(ctx context.Context, job *model.ReprocessJob) error
	GetReprocessJob(ctx context.Context, id string) (*model.ReprocessJob, error)
	ReprocessJobByKey(ctx context.Context, idempotencyKey string) (*model.ReprocessJob, error)
	ActiveReprocessJobForPassage(ctx context.Context, passageID string) (*model.ReprocessJob, error)
	UpdateReprocessJob(ctx context.Context, job *model.ReprocessJob) error
	ClaimNextReprocessJob(ctx context.Context) (*model.ReprocessJob, error)
	ListReprocessJobs(ctx context.Context, filter JobFilter) ([]model.ReprocessJob, error)

	// Job attempts
	CreateJobAttempt(ctx context.Context, attempt *model.JobAttempt) error
	ListJobAttempts(ctx context.Context, jobID string) ([]model.JobAttempt, error)

	// Pattern tags
	CreateTag(ctx context.Context, tag *model.RitualPatternTag) error
	GetTag(ctx context.Context, id string) (*model.RitualPatternTag, error)
	UpdateTag(ctx context.Context, tag *model.RitualPatternTag) error
	ListTagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.RitualPatternTag, error)

	// Commonality links
	CreateLink(ctx context.Context, link *model.CommonalityLink) error
	GetLink(ctx context.Context, id string) (*model.CommonalityLink, error)
	UpdateLink(ctx context.Context, link *model.CommonalityLink) error
	ListLinksByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.CommonalityLink, error)

	// Flags
	CreateFlag(ctx context.Context, flag *model.FlagRecord) error
	GetFlag(ctx context.Context, id string) (*model.FlagRecord, error)
	UpdateFlag(ctx context.Context, flag *model.FlagRecord) error
	FlagByPassageAndType(ctx context.Context, passageID, flagType string) (*model.FlagRecord, error)
	ListFlagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.FlagRecord, error)

	// Pending vocabulary terms
	CreatePendingTerm(ctx context.Context, term *model.PendingTerm) error
	ListPendingTerms(ctx context.Context, status string, limit int) ([]model.PendingTerm, error)

	// Proposal traces
	WriteProposalTrace(ctx context.Context, trace *model.ProposalTrace) error
	SuccessfulBundleTraceExists(ctx context.Context, passageID string) (bool, error)
	ListProposalTraces(ctx context.Context, objectID string, limit int) ([]model.ProposalTrace, error)

	// Translation revisions
	CreateTranslationRevision(ctx context.Context, rev *model.TranslationRevision) error
	ListTranslationRevisions(ctx context.Context, passageID string) ([]model.TranslationRevision, error)

	// Review decisions
	CreateReviewDecision(ctx context.Context, decision *model.ReviewDecisionRecord) error
	ListReviewDecisions(ctx context.Context, objectID string) ([]model.ReviewDecisionRecord, error)

	// Audit log
	WriteAuditEvent(ctx context.Context, event *model.AuditEvent) error
	ListAuditEvents(ctx context.Context, filter AuditFilter) ([]model.AuditEvent, error)

	// Derived-text artifacts
	CreateArtifact(ctx context.Context, artifact *model.Artifact) error
	GetArtifact(ctx context.Context, sourceID, artifactType string) (*model.Artifact, error)

	// Stats
	Stats(ctx context.Context) (*PipelineStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
