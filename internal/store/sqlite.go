package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/three-lanterns/curator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS texts (
	id              TEXT PRIMARY KEY,
	canonical_title TEXT NOT NULL,
	region          TEXT NOT NULL DEFAULT '',
	tradition_tags  TEXT NOT NULL DEFAULT 'null',
	source_count    INTEGER NOT NULL DEFAULT 0,
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id                  TEXT PRIMARY KEY,
	text_id             TEXT NOT NULL REFERENCES texts(id),
	path                TEXT NOT NULL UNIQUE,
	raw_sha256          TEXT NOT NULL,
	normalized_sha256   TEXT NOT NULL,
	witness_group_id    TEXT NOT NULL DEFAULT '',
	duplicate_of_id     TEXT NOT NULL DEFAULT '',
	digitization_status TEXT NOT NULL DEFAULT '',
	created_by          TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS witness_groups (
	id                TEXT PRIMARY KEY,
	canonical_text_id TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	match_method      TEXT NOT NULL,
	match_score       REAL NOT NULL DEFAULT 0,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS witness_group_members (
	group_id          TEXT NOT NULL REFERENCES witness_groups(id),
	source_id         TEXT NOT NULL REFERENCES sources(id),
	member_role       TEXT NOT NULL,
	parser_strategy   TEXT NOT NULL DEFAULT '',
	membership_reason TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	PRIMARY KEY (group_id, source_id)
);

CREATE TABLE IF NOT EXISTS consolidated_passages (
	id              TEXT PRIMARY KEY,
	group_id        TEXT NOT NULL REFERENCES witness_groups(id),
	merged_text     TEXT NOT NULL,
	passage_hash    TEXT NOT NULL,
	usability_score REAL NOT NULL DEFAULT 0,
	relevance_score REAL NOT NULL DEFAULT 0,
	relevance_state TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS consolidated_passage_sources (
	consolidated_id  TEXT NOT NULL REFERENCES consolidated_passages(id) ON DELETE CASCADE,
	passage_id       TEXT NOT NULL,
	source_id        TEXT NOT NULL,
	similarity_score REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	PRIMARY KEY (consolidated_id, passage_id)
);

CREATE TABLE IF NOT EXISTS passages (
	id                    TEXT PRIMARY KEY,
	text_id               TEXT NOT NULL,
	source_id             TEXT NOT NULL,
	span_locator          TEXT NOT NULL DEFAULT '',
	excerpt_original      TEXT NOT NULL,
	excerpt_normalized    TEXT NOT NULL DEFAULT '',
	normalized_language   TEXT NOT NULL DEFAULT '',
	extraction_confidence REAL NOT NULL DEFAULT 0,
	detected_lang_code    TEXT NOT NULL DEFAULT '',
	detected_lang_label   TEXT NOT NULL DEFAULT '',
	lang_confidence       REAL NOT NULL DEFAULT 0,
	translation_status    TEXT NOT NULL,
	untranslated_ratio    REAL NOT NULL DEFAULT 0,
	needs_reprocess       INTEGER NOT NULL DEFAULT 0,
	reprocess_count       INTEGER NOT NULL DEFAULT 0,
	last_reprocess_at     DATETIME,
	translation_provider  TEXT NOT NULL DEFAULT '',
	translation_trace_id  TEXT NOT NULL DEFAULT '',
	usability_score       REAL NOT NULL DEFAULT 0,
	relevance_score       REAL NOT NULL DEFAULT 0,
	relevance_state       TEXT NOT NULL,
	quality_notes         TEXT NOT NULL DEFAULT 'null',
	quality_version       TEXT NOT NULL DEFAULT '',
	reviewer_state        TEXT NOT NULL,
	publish_state         TEXT NOT NULL,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id              TEXT PRIMARY KEY,
	source_id       TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	status          TEXT NOT NULL,
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	parser_strategy TEXT NOT NULL DEFAULT '',
	parser_name     TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	error_code      TEXT NOT NULL DEFAULT '',
	error_context   TEXT NOT NULL DEFAULT 'null',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reprocess_jobs (
	id                      TEXT PRIMARY KEY,
	passage_id              TEXT NOT NULL,
	idempotency_key         TEXT NOT NULL UNIQUE,
	status                  TEXT NOT NULL,
	trigger_mode            TEXT NOT NULL,
	trigger_reason          TEXT NOT NULL DEFAULT '',
	attempt_count           INTEGER NOT NULL DEFAULT 0,
	max_attempts            INTEGER NOT NULL DEFAULT 3,
	used_pdf_crossref       INTEGER NOT NULL DEFAULT 0,
	used_external_reference INTEGER NOT NULL DEFAULT 0,
	last_error              TEXT NOT NULL DEFAULT '',
	error_code              TEXT NOT NULL DEFAULT '',
	error_context           TEXT NOT NULL DEFAULT 'null',
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_attempts (
	id           TEXT PRIMARY KEY,
	job_id       TEXT NOT NULL,
	attempt_no   INTEGER NOT NULL,
	status       TEXT NOT NULL,
	error_detail TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_tags (
	id             TEXT PRIMARY KEY,
	dimension      TEXT NOT NULL,
	term           TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 0,
	evidence_ids   TEXT NOT NULL DEFAULT 'null',
	reviewer_state TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS commonality_links (
	id                TEXT PRIMARY KEY,
	source_passage_id TEXT NOT NULL,
	target_passage_id TEXT NOT NULL,
	relation_type     TEXT NOT NULL,
	similarity_score  REAL NOT NULL DEFAULT 0,
	evidence_ids      TEXT NOT NULL DEFAULT 'null',
	reviewer_state    TEXT NOT NULL,
	decision_note     TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
	id             TEXT PRIMARY KEY,
	passage_id     TEXT NOT NULL,
	flag_type      TEXT NOT NULL,
	severity       TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	evidence_ids   TEXT NOT NULL DEFAULT 'null',
	reviewer_state TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_terms (
	id           TEXT PRIMARY KEY,
	dimension    TEXT NOT NULL,
	term         TEXT NOT NULL,
	rationale    TEXT NOT NULL DEFAULT '',
	evidence_ids TEXT NOT NULL DEFAULT 'null',
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposal_traces (
	id              TEXT PRIMARY KEY,
	object_type     TEXT NOT NULL,
	object_id       TEXT NOT NULL,
	proposal_type   TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	model_name      TEXT NOT NULL DEFAULT '',
	prompt_version  TEXT NOT NULL DEFAULT '',
	prompt_hash     TEXT NOT NULL DEFAULT '',
	response_hash   TEXT NOT NULL DEFAULT '',
	usage           TEXT NOT NULL DEFAULT 'null',
	retry_count     INTEGER NOT NULL DEFAULT 0,
	failure_reason  TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS translation_revisions (
	id                  TEXT PRIMARY KEY,
	passage_id          TEXT NOT NULL,
	attempt_no          INTEGER NOT NULL,
	source_variant      TEXT NOT NULL,
	input_excerpt       TEXT NOT NULL DEFAULT '',
	translated_excerpt  TEXT NOT NULL DEFAULT '',
	detected_lang_code  TEXT NOT NULL DEFAULT '',
	detected_lang_label TEXT NOT NULL DEFAULT '',
	untranslated_ratio  REAL NOT NULL DEFAULT 0,
	quality_decision    TEXT NOT NULL DEFAULT '',
	provenance          TEXT NOT NULL DEFAULT 'null',
	trace_id            TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS review_decisions (
	id             TEXT PRIMARY KEY,
	object_kind    TEXT NOT NULL,
	object_id      TEXT NOT NULL,
	reviewer_id    TEXT NOT NULL,
	decision       TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	previous_state TEXT NOT NULL DEFAULT '',
	new_state      TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id             TEXT PRIMARY KEY,
	actor          TEXT NOT NULL,
	action         TEXT NOT NULL,
	object_type    TEXT NOT NULL,
	object_id      TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	previous_state TEXT NOT NULL DEFAULT '',
	new_state      TEXT NOT NULL DEFAULT '',
	metadata       TEXT NOT NULL DEFAULT 'null',
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL,
	artifact_type TEXT NOT NULL,
	text          TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	UNIQUE (source_id, artifact_type)
);

CREATE INDEX IF NOT EXISTS idx_sources_raw_sha256 ON sources(raw_sha256);
CREATE INDEX IF NOT EXISTS idx_sources_normalized_sha256 ON sources(normalized_sha256);
CREATE INDEX IF NOT EXISTS idx_sources_text_id ON sources(text_id);
CREATE INDEX IF NOT EXISTS idx_passages_source_id ON passages(source_id);
CREATE INDEX IF NOT EXISTS idx_passages_translation_status ON passages(translation_status);
CREATE INDEX IF NOT EXISTS idx_passages_reviewer_state ON passages(reviewer_state);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_reprocess_jobs_status ON reprocess_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_reprocess_jobs_passage ON reprocess_jobs(passage_id);
CREATE INDEX IF NOT EXISTS idx_job_attempts_job_id ON job_attempts(job_id);
CREATE INDEX IF NOT EXISTS idx_traces_object_id ON proposal_traces(object_id);
CREATE INDEX IF NOT EXISTS idx_revisions_passage_id ON translation_revisions(passage_id);
CREATE INDEX IF NOT EXISTS idx_decisions_object_id ON review_decisions(object_id);
CREATE INDEX IF NOT EXISTS idx_audit_object_id ON audit_events(object_id);
CREATE INDEX IF NOT EXISTS idx_audit_correlation_id ON audit_events(correlation_id);
CREATE INDEX IF NOT EXISTS idx_consolidated_group_id ON consolidated_passages(group_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Texts ---

func (s *SQLiteStore) CreateText(ctx context.Context, text *model.Text) error {
	tags, err := marshalJSON(text.TraditionTags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tradition tags")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO texts (id, canonical_title, region, tradition_tags, source_count, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		text.ID, text.CanonicalTitle, text.Region, tags, text.SourceCount, text.CreatedBy, text.CreatedAt, text.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert text")
}

const textColumns = `id, canonical_title, region, tradition_tags, source_count, created_by, created_at, updated_at`

func (s *SQLiteStore) GetText(ctx context.Context, id string) (*model.Text, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+textColumns+` FROM texts WHERE id = ?`, id)
	return scanText(row)
}

func (s *SQLiteStore) UpdateText(ctx context.Context, text *model.Text) error {
	tags, err := marshalJSON(text.TraditionTags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tradition tags")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE texts SET canonical_title = ?, region = ?, tradition_tags = ?, source_count = ?, updated_at = ? WHERE id = ?`,
		text.CanonicalTitle, text.Region, tags, text.SourceCount, time.Now().UTC(), text.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update text %s", text.ID)
	}
	return checkRowsAffected(res, "text", text.ID)
}

func (s *SQLiteStore) SearchTexts(ctx context.Context, query string, limit int) ([]model.Text, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+textColumns+` FROM texts WHERE canonical_title LIKE '%' || ? || '%' ORDER BY canonical_title LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search texts")
	}
	defer rows.Close()

	var texts []model.Text
	for rows.Next() {
		t, err := scanText(rows)
		if err != nil {
			return nil, err
		}
		texts = append(texts, *t)
	}
	return texts, eris.Wrap(rows.Err(), "sqlite: search texts iterate")
}

// --- Source materials ---

const sourceColumns = `id, text_id, path, raw_sha256, normalized_sha256, witness_group_id, duplicate_of_id, digitization_status, created_by, created_at, updated_at`

func (s *SQLiteStore) CreateSource(ctx context.Context, source *model.SourceMaterial) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		source.ID, source.TextID, source.Path, source.RawSHA256, source.NormalizedSHA256,
		source.WitnessGroupID, source.DuplicateOfID, source.DigitizationStatus,
		source.CreatedBy, source.CreatedAt, source.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert source")
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*model.SourceMaterial, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *SQLiteStore) UpdateSource(ctx context.Context, source *model.SourceMaterial) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET text_id = ?, witness_group_id = ?, duplicate_of_id = ?, digitization_status = ?, updated_at = ? WHERE id = ?`,
		source.TextID, source.WitnessGroupID, source.DuplicateOfID, source.DigitizationStatus, time.Now().UTC(), source.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update source %s", source.ID)
	}
	return checkRowsAffected(res, "source", source.ID)
}

func (s *SQLiteStore) SourceByPath(ctx context.Context, path string) (*model.SourceMaterial, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE path = ?`, path)
	return scanSource(row)
}

func (s *SQLiteStore) SourcesByRawHash(ctx context.Context, hash string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE raw_sha256 = ? ORDER BY created_at`, hash)
}

func (s *SQLiteStore) SourcesByNormalizedHash(ctx context.Context, hash string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE normalized_sha256 = ? ORDER BY created_at`, hash)
}

func (s *SQLiteStore) SourcesByTextID(ctx context.Context, textID string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE text_id = ? ORDER BY created_at`, textID)
}

func (s *SQLiteStore) RecentSources(ctx context.Context, limit int) ([]model.SourceMaterial, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) listSources(ctx context.Context, query string, args ...any) ([]model.SourceMaterial, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var sources []model.SourceMaterial
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

// --- Witness groups ---

const groupColumns = `id, canonical_text_id, status, match_method, match_score, created_by, created_at, updated_at`

func (s *SQLiteStore) CreateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO witness_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.CanonicalTextID, string(group.Status), string(group.MatchMethod),
		group.MatchScore, group.CreatedBy, group.CreatedAt, group.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert witness group")
}

func (s *SQLiteStore) GetWitnessGroup(ctx context.Context, id string) (*model.WitnessGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM witness_groups WHERE id = ?`, id)
	return scanGroup(row)
}

func (s *SQLiteStore) UpdateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE witness_groups SET canonical_text_id = ?, status = ?, match_method = ?, match_score = ?, updated_at = ? WHERE id = ?`,
		group.CanonicalTextID, string(group.Status), string(group.MatchMethod), group.MatchScore, time.Now().UTC(), group.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update witness group %s", group.ID)
	}
	return checkRowsAffected(res, "witness group", group.ID)
}

func (s *SQLiteStore) ListWitnessGroups(ctx context.Context, status model.GroupStatus, limit int) ([]model.WitnessGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM witness_groups WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list witness groups")
	}
	defer rows.Close()

	var groups []model.WitnessGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, eris.Wrap(rows.Err(), "sqlite: list witness groups iterate")
}

const memberColumns = `group_id, source_id, member_role, parser_strategy, membership_reason, created_at`

func (s *SQLiteStore) CreateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO witness_group_members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		member.GroupID, member.SourceID, string(member.Role), member.ParserStrategy, member.MembershipReason, member.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert group member")
}

func (s *SQLiteStore) GetGroupMember(ctx context.Context, groupID, sourceID string) (*model.WitnessGroupMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM witness_group_members WHERE group_id = ? AND source_id = ?`,
		groupID, sourceID)
	return scanMember(row)
}

func (s *SQLiteStore) UpdateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE witness_group_members SET member_role = ?, parser_strategy = ?, membership_reason = ? WHERE group_id = ? AND source_id = ?`,
		string(member.Role), member.ParserStrategy, member.MembershipReason, member.GroupID, member.SourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update group member %s/%s", member.GroupID, member.SourceID)
	}
	return checkRowsAffected(res, "group member", member.GroupID+"/"+member.SourceID)
}

func (s *SQLiteStore) ListGroupMembers(ctx context.Context, groupID string) ([]model.WitnessGroupMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM witness_group_members WHERE group_id = ? ORDER BY created_at`, groupID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list group members")
	}
	defer rows.Close()

	var members []model.WitnessGroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, eris.Wrap(rows.Err(), "sqlite: list group members iterate")
}

// --- Consolidated passages ---

func (s *SQLiteStore) DeleteConsolidatedPassages(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM consolidated_passage_sources WHERE consolidated_id IN (SELECT id FROM consolidated_passages WHERE group_id = ?)`,
		groupID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete consolidated sources for group %s", groupID)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM consolidated_passages WHERE group_id = ?`, groupID)
	return eris.Wrapf(err, "sqlite: delete consolidated passages for group %s", groupID)
}

const consolidatedColumns = `id, group_id, merged_text, passage_hash, usability_score, relevance_score, relevance_state, created_at`

func (s *SQLiteStore) CreateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidated_passages (`+consolidatedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.GroupID, cp.MergedText, cp.PassageHash, cp.UsabilityScore, cp.RelevanceScore, string(cp.RelevanceState), cp.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert consolidated passage")
}

func (s *SQLiteStore) UpdateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE consolidated_passages SET merged_text = ?, passage_hash = ?, usability_score = ?, relevance_score = ?, relevance_state = ? WHERE id = ?`,
		cp.MergedText, cp.PassageHash, cp.UsabilityScore, cp.RelevanceScore, string(cp.RelevanceState), cp.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update consolidated passage %s", cp.ID)
	}
	return checkRowsAffected(res, "consolidated passage", cp.ID)
}

func (s *SQLiteStore) ListConsolidatedPassages(ctx context.Context, groupID string) ([]model.ConsolidatedPassage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+consolidatedColumns+` FROM consolidated_passages WHERE group_id = ? ORDER BY created_at`, groupID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list consolidated passages")
	}
	defer rows.Close()

	var entries []model.ConsolidatedPassage
	for rows.Next() {
		var cp model.ConsolidatedPassage
		if err := rows.Scan(&cp.ID, &cp.GroupID, &cp.MergedText, &cp.PassageHash,
			&cp.UsabilityScore, &cp.RelevanceScore, &cp.RelevanceState, &cp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan consolidated passage")
		}
		entries = append(entries, cp)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list consolidated passages iterate")
}

func (s *SQLiteStore) CreateConsolidatedPassageSource(ctx context.Context, link *model.ConsolidatedPassageSource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidated_passage_sources (consolidated_id, passage_id, source_id, similarity_score, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		link.ConsolidatedID, link.PassageID, link.SourceID, link.SimilarityScore, link.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert consolidated passage source")
}

// --- Passages ---

const passageColumns = `id, text_id, source_id, span_locator, excerpt_original, excerpt_normalized, normalized_language, extraction_confidence, detected_lang_code, detected_lang_label, lang_confidence, translation_status, untranslated_ratio, needs_reprocess, reprocess_count, last_reprocess_at, translation_provider, translation_trace_id, usability_score, relevance_score, relevance_state, quality_notes, quality_version, reviewer_state, publish_state, created_at, updated_at`

func (s *SQLiteStore) CreatePassage(ctx context.Context, p *model.Passage) error {
	notes, err := marshalJSON(p.QualityNotes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quality notes")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO passages (`+passageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TextID, p.SourceID, p.SpanLocator, p.Original, p.Normalized, p.NormalizedLanguage,
		p.ExtractionConf, p.DetectedLangCode, p.DetectedLangLabel, p.LangConfidence,
		string(p.TranslationStatus), p.UntranslatedRatio, p.NeedsReprocess, p.ReprocessCount,
		nullableTime(p.LastReprocessAt), p.TranslationSource, p.TranslationTraceID,
		p.UsabilityScore, p.RelevanceScore, string(p.RelevanceState), notes, p.QualityVersion,
		string(p.ReviewerState), string(p.PublishState), p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert passage")
}

func (s *SQLiteStore) GetPassage(ctx context.Context, id string) (*model.Passage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE id = ?`, id)
	return scanPassage(row)
}

func (s *SQLiteStore) UpdatePassage(ctx context.Context, p *model.Passage) error {
	notes, err := marshalJSON(p.QualityNotes)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quality notes")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE passages SET excerpt_normalized = ?, normalized_language = ?, detected_lang_code = ?, detected_lang_label = ?,
		 lang_confidence = ?, translation_status = ?, untranslated_ratio = ?, needs_reprocess = ?, reprocess_count = ?,
		 last_reprocess_at = ?, translation_provider = ?, translation_trace_id = ?, usability_score = ?, relevance_score = ?,
		 relevance_state = ?, quality_notes = ?, quality_version = ?, reviewer_state = ?, publish_state = ?, updated_at = ?
		 WHERE id = ?`,
		p.Normalized, p.NormalizedLanguage, p.DetectedLangCode, p.DetectedLangLabel,
		p.LangConfidence, string(p.TranslationStatus), p.UntranslatedRatio, p.NeedsReprocess, p.ReprocessCount,
		nullableTime(p.LastReprocessAt), p.TranslationSource, p.TranslationTraceID, p.UsabilityScore, p.RelevanceScore,
		string(p.RelevanceState), notes, p.QualityVersion, string(p.ReviewerState), string(p.PublishState), time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update passage %s", p.ID)
	}
	return checkRowsAffected(res, "passage", p.ID)
}

func (s *SQLiteStore) ListPassages(ctx context.Context, filter PassageFilter) ([]model.Passage, error) {
	query := `SELECT ` + passageColumns + ` FROM passages WHERE 1=1`
	var args []any

	if filter.TextID != "" {
		query += ` AND text_id = ?`
		args = append(args, filter.TextID)
	}
	if filter.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filter.SourceID)
	}
	if filter.TranslationStatus != "" {
		query += ` AND translation_status = ?`
		args = append(args, string(filter.TranslationStatus))
	}
	if filter.RelevanceState != "" {
		query += ` AND relevance_state = ?`
		args = append(args, string(filter.RelevanceState))
	}
	if filter.ReviewerState != "" {
		query += ` AND reviewer_state = ?`
		args = append(args, string(filter.ReviewerState))
	}
	if filter.NeedsReprocess != nil {
		query += ` AND needs_reprocess = ?`
		args = append(args, *filter.NeedsReprocess)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}
	return s.listPassages(ctx, query, args...)
}

func (s *SQLiteStore) PassagesBySourceIDs(ctx context.Context, sourceIDs []string) ([]model.Passage, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(sourceIDs))
	placeholders = placeholders[:len(placeholders)-2]
	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		args[i] = id
	}
	return s.listPassages(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE source_id IN (`+placeholders+`) ORDER BY created_at`, args...)
}

func (s *SQLiteStore) ListPeerPassages(ctx context.Context, limit int) ([]model.Passage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listPassages(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE relevance_state != ? ORDER BY created_at DESC LIMIT ?`,
		string(model.RelevanceFiltered), limit)
}

func (s *SQLiteStore) SearchPassages(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listPassages(ctx,
		`SELECT `+passageColumns+` FROM passages
		 WHERE excerpt_normalized LIKE '%' || ? || '%' OR excerpt_original LIKE '%' || ? || '%'
		 ORDER BY created_at DESC LIMIT ?`,
		query, query, limit)
}

func (s *SQLiteStore) listPassages(ctx context.Context, query string, args ...any) ([]model.Passage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list passages")
	}
	defer rows.Close()

	var passages []model.Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		passages = append(passages, *p)
	}
	return passages, eris.Wrap(rows.Err(), "sqlite: list passages iterate")
}

// --- Ingestion jobs ---

const ingestionJobColumns = `id, source_id, idempotency_key, status, attempt_count, max_attempts, parser_strategy, parser_name, last_error, error_code, error_context, created_at, updated_at`

func (s *SQLiteStore) CreateIngestionJob(ctx context.Context, job *model.IngestionJob) error {
	errCtx, err := marshalJSON(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error context")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestion_jobs (`+ingestionJobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceID, job.IdempotencyKey, string(job.Status), job.AttemptCount, job.MaxAttempts,
		job.ParserStrategy, job.ParserName, job.LastError, string(job.ErrorCode), errCtx,
		job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert ingestion job")
}

func (s *SQLiteStore) GetIngestionJob(ctx context.Context, id string) (*model.IngestionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ingestionJobColumns+` FROM ingestion_jobs WHERE id = ?`, id)
	return scanIngestionJob(row)
}

func (s *SQLiteStore) IngestionJobByKey(ctx context.Context, idempotencyKey string) (*model.IngestionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ingestionJobColumns+` FROM ingestion_jobs WHERE idempotency_key = ?`, idempotencyKey)
	return scanIngestionJob(row)
}

func (s *SQLiteStore) UpdateIngestionJob(ctx context.Context, job *model.IngestionJob) error {
	errCtx, err := marshalJSON(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error context")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET status = ?, attempt_count = ?, parser_strategy = ?, parser_name = ?,
		 last_error = ?, error_code = ?, error_context = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.AttemptCount, job.ParserStrategy, job.ParserName,
		job.LastError, string(job.ErrorCode), errCtx, time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update ingestion job %s", job.ID)
	}
	return checkRowsAffected(res, "ingestion job", job.ID)
}

// ClaimNextIngestionJob atomically moves the oldest pending job to running and
// increments its attempt counter. Returns (nil, nil) when the queue is empty.
func (s *SQLiteStore) ClaimNextIngestionJob(ctx context.Context) (*model.IngestionJob, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE ingestion_jobs SET status = ?, attempt_count = attempt_count + 1, updated_at = ?
		 WHERE id = (SELECT id FROM ingestion_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1)
		 RETURNING `+ingestionJobColumns,
		string(model.JobRunning), time.Now().UTC(), string(model.JobPending),
	)
	return scanIngestionJob(row)
}

func (s *SQLiteStore) ListIngestionJobs(ctx context.Context, filter JobFilter) ([]model.IngestionJob, error) {
	query := `SELECT ` + ingestionJobColumns + ` FROM ingestion_jobs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingestion jobs")
	}
	defer rows.Close()

	var jobs []model.IngestionJob
	for rows.Next() {
		j, err := scanIngestionJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list ingestion jobs iterate")
}

// --- Reprocess jobs ---

const reprocessJobColumns = `id, passage_id, idempotency_key, status, trigger_mode, trigger_reason, attempt_count, max_attempts, used_pdf_crossref, used_external_reference, last_error, error_code, error_context, created_at, updated_at`

func (s *SQLiteStore) CreateReprocessJob(ctx context.Context, job *model.ReprocessJob) error {
	errCtx, err := marshalJSON(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error context")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reprocess_jobs (`+reprocessJobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.PassageID, job.IdempotencyKey, string(job.Status), string(job.TriggerMode), job.TriggerReason,
		job.AttemptCount, job.MaxAttempts, job.UsedPDFCrossref, job.UsedExternalReference,
		job.LastError, string(job.ErrorCode), errCtx, job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert reprocess job")
}

func (s *SQLiteStore) GetReprocessJob(ctx context.Context, id string) (*model.ReprocessJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs WHERE id = ?`, id)
	return scanReprocessJob(row)
}

func (s *SQLiteStore) ReprocessJobByKey(ctx context.Context, idempotencyKey string) (*model.ReprocessJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs WHERE idempotency_key = ?`, idempotencyKey)
	return scanReprocessJob(row)
}

func (s *SQLiteStore) ActiveReprocessJobForPassage(ctx context.Context, passageID string) (*model.ReprocessJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs
		 WHERE passage_id = ? AND status IN (?, ?) ORDER BY created_at LIMIT 1`,
		passageID, string(model.JobPending), string(model.JobRunning),
	)
	return scanReprocessJob(row)
}

func (s *SQLiteStore) UpdateReprocessJob(ctx context.Context, job *model.ReprocessJob) error {
	errCtx, err := marshalJSON(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error context")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reprocess_jobs SET status = ?, attempt_count = ?, used_pdf_crossref = ?, used_external_reference = ?,
		 last_error = ?, error_code = ?, error_context = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.AttemptCount, job.UsedPDFCrossref, job.UsedExternalReference,
		job.LastError, string(job.ErrorCode), errCtx, time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update reprocess job %s", job.ID)
	}
	return checkRowsAffected(res, "reprocess job", job.ID)
}

func (s *SQLiteStore) ClaimNextReprocessJob(ctx context.Context) (*model.ReprocessJob, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE reprocess_jobs SET status = ?, attempt_count = attempt_count + 1, updated_at = ?
		 WHERE id = (SELECT id FROM reprocess_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1)
		 RETURNING `+reprocessJobColumns,
		string(model.JobRunning), time.Now().UTC(), string(model.JobPending),
	)
	return scanReprocessJob(row)
}

func (s *SQLiteStore) ListReprocessJobs(ctx context.Context, filter JobFilter) ([]model.ReprocessJob, error) {
	query := `SELECT ` + reprocessJobColumns + ` FROM reprocess_jobs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reprocess jobs")
	}
	defer rows.Close()

	var jobs []model.ReprocessJob
	for rows.Next() {
		j, err := scanReprocessJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list reprocess jobs iterate")
}

// --- Job attempts ---

func (s *SQLiteStore) CreateJobAttempt(ctx context.Context, attempt *model.JobAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_attempts (id, job_id, attempt_no, status, error_detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.JobID, attempt.AttemptNo, string(attempt.Status), attempt.ErrorDetail, attempt.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert job attempt")
}

func (s *SQLiteStore) ListJobAttempts(ctx context.Context, jobID string) ([]model.JobAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, attempt_no, status, error_detail, created_at FROM job_attempts WHERE job_id = ? ORDER BY attempt_no`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list job attempts")
	}
	defer rows.Close()

	var attempts []model.JobAttempt
	for rows.Next() {
		var a model.JobAttempt
		if err := rows.Scan(&a.ID, &a.JobID, &a.AttemptNo, &a.Status, &a.ErrorDetail, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job attempt")
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list job attempts iterate")
}

// --- Pattern tags ---

const tagColumns = `id, dimension, term, confidence, evidence_ids, reviewer_state, rationale, created_at, updated_at`

func (s *SQLiteStore) CreateTag(ctx context.Context, tag *model.RitualPatternTag) error {
	evidence, err := marshalJSON(tag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pattern_tags (`+tagColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Dimension, tag.Term, tag.Confidence, evidence, string(tag.ReviewerState),
		tag.Rationale, tag.CreatedAt, tag.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pattern tag")
}

func (s *SQLiteStore) GetTag(ctx context.Context, id string) (*model.RitualPatternTag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM pattern_tags WHERE id = ?`, id)
	return scanTag(row)
}

func (s *SQLiteStore) UpdateTag(ctx context.Context, tag *model.RitualPatternTag) error {
	evidence, err := marshalJSON(tag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pattern_tags SET dimension = ?, term = ?, confidence = ?, evidence_ids = ?, reviewer_state = ?, rationale = ?, updated_at = ? WHERE id = ?`,
		tag.Dimension, tag.Term, tag.Confidence, evidence, string(tag.ReviewerState), tag.Rationale, time.Now().UTC(), tag.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pattern tag %s", tag.ID)
	}
	return checkRowsAffected(res, "pattern tag", tag.ID)
}

func (s *SQLiteStore) ListTagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.RitualPatternTag, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM pattern_tags WHERE reviewer_state = ? ORDER BY created_at LIMIT ?`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pattern tags")
	}
	defer rows.Close()

	var tags []model.RitualPatternTag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, eris.Wrap(rows.Err(), "sqlite: list pattern tags iterate")
}

// --- Commonality links ---

const linkColumns = `id, source_passage_id, target_passage_id, relation_type, similarity_score, evidence_ids, reviewer_state, decision_note, created_at, updated_at`

func (s *SQLiteStore) CreateLink(ctx context.Context, link *model.CommonalityLink) error {
	evidence, err := marshalJSON(link.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO commonality_links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.SourcePassageID, link.TargetPassageID, link.RelationType, link.SimilarityScore,
		evidence, string(link.ReviewerState), link.DecisionNote, link.CreatedAt, link.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert commonality link")
}

func (s *SQLiteStore) GetLink(ctx context.Context, id string) (*model.CommonalityLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM commonality_links WHERE id = ?`, id)
	return scanLink(row)
}

func (s *SQLiteStore) UpdateLink(ctx context.Context, link *model.CommonalityLink) error {
	evidence, err := marshalJSON(link.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE commonality_links SET relation_type = ?, similarity_score = ?, evidence_ids = ?, reviewer_state = ?, decision_note = ?, updated_at = ? WHERE id = ?`,
		link.RelationType, link.SimilarityScore, evidence, string(link.ReviewerState), link.DecisionNote, time.Now().UTC(), link.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update commonality link %s", link.ID)
	}
	return checkRowsAffected(res, "commonality link", link.ID)
}

func (s *SQLiteStore) ListLinksByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.CommonalityLink, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM commonality_links WHERE reviewer_state = ? ORDER BY created_at LIMIT ?`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list commonality links")
	}
	defer rows.Close()

	var links []model.CommonalityLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, eris.Wrap(rows.Err(), "sqlite: list commonality links iterate")
}

// --- Flags ---

const flagColumns = `id, passage_id, flag_type, severity, rationale, evidence_ids, reviewer_state, created_at, updated_at`

func (s *SQLiteStore) CreateFlag(ctx context.Context, flag *model.FlagRecord) error {
	evidence, err := marshalJSON(flag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flags (`+flagColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID, flag.PassageID, flag.FlagType, flag.Severity, flag.Rationale,
		evidence, string(flag.ReviewerState), flag.CreatedAt, flag.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert flag")
}

func (s *SQLiteStore) GetFlag(ctx context.Context, id string) (*model.FlagRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE id = ?`, id)
	return scanFlag(row)
}

func (s *SQLiteStore) UpdateFlag(ctx context.Context, flag *model.FlagRecord) error {
	evidence, err := marshalJSON(flag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE flags SET severity = ?, rationale = ?, evidence_ids = ?, reviewer_state = ?, updated_at = ? WHERE id = ?`,
		flag.Severity, flag.Rationale, evidence, string(flag.ReviewerState), time.Now().UTC(), flag.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update flag %s", flag.ID)
	}
	return checkRowsAffected(res, "flag", flag.ID)
}

func (s *SQLiteStore) FlagByPassageAndType(ctx context.Context, passageID, flagType string) (*model.FlagRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE passage_id = ? AND flag_type = ? ORDER BY created_at LIMIT 1`,
		passageID, flagType)
	return scanFlag(row)
}

func (s *SQLiteStore) ListFlagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.FlagRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE reviewer_state = ? ORDER BY created_at LIMIT ?`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flags")
	}
	defer rows.Close()

	var flags []model.FlagRecord
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	return flags, eris.Wrap(rows.Err(), "sqlite: list flags iterate")
}

// --- Pending vocabulary terms ---

func (s *SQLiteStore) CreatePendingTerm(ctx context.Context, term *model.PendingTerm) error {
	evidence, err := marshalJSON(term.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_terms (id, dimension, term, rationale, evidence_ids, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		term.ID, term.Dimension, term.Term, term.Rationale, evidence, term.Status, term.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pending term")
}

func (s *SQLiteStore) ListPendingTerms(ctx context.Context, status string, limit int) ([]model.PendingTerm, error) {
	query := `SELECT id, dimension, term, rationale, evidence_ids, status, created_at FROM pending_terms WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending terms")
	}
	defer rows.Close()

	var terms []model.PendingTerm
	for rows.Next() {
		var t model.PendingTerm
		var evidence string
		if err := rows.Scan(&t.ID, &t.Dimension, &t.Term, &t.Rationale, &evidence, &t.Status, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending term")
		}
		if err := json.Unmarshal([]byte(evidence), &t.EvidenceIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence ids")
		}
		terms = append(terms, t)
	}
	return terms, eris.Wrap(rows.Err(), "sqlite: list pending terms iterate")
}

// --- Proposal traces ---

const traceColumns = `id, object_type, object_id, proposal_type, idempotency_key, model_name, prompt_version, prompt_hash, response_hash, usage, retry_count, failure_reason, created_by, created_at`

func (s *SQLiteStore) WriteProposalTrace(ctx context.Context, trace *model.ProposalTrace) error {
	usage, err := marshalJSON(trace.Usage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trace usage")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO proposal_traces (`+traceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.ObjectType, trace.ObjectID, trace.ProposalType, trace.IdempotencyKey,
		trace.ModelName, trace.PromptVersion, trace.PromptHash, trace.ResponseHash,
		usage, trace.RetryCount, trace.FailureReason, trace.CreatedBy, trace.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert proposal trace")
}

func (s *SQLiteStore) SuccessfulBundleTraceExists(ctx context.Context, passageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM proposal_traces WHERE object_id = ? AND proposal_type = 'bundle' AND failure_reason = '' LIMIT 1`,
		passageID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check bundle trace")
	}
	return true, nil
}

func (s *SQLiteStore) ListProposalTraces(ctx context.Context, objectID string, limit int) ([]model.ProposalTrace, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+traceColumns+` FROM proposal_traces WHERE object_id = ? ORDER BY created_at DESC LIMIT ?`,
		objectID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposal traces")
	}
	defer rows.Close()

	var traces []model.ProposalTrace
	for rows.Next() {
		var tr model.ProposalTrace
		var usage string
		if err := rows.Scan(&tr.ID, &tr.ObjectType, &tr.ObjectID, &tr.ProposalType, &tr.IdempotencyKey,
			&tr.ModelName, &tr.PromptVersion, &tr.PromptHash, &tr.ResponseHash,
			&usage, &tr.RetryCount, &tr.FailureReason, &tr.CreatedBy, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal trace")
		}
		if err := json.Unmarshal([]byte(usage), &tr.Usage); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trace usage")
		}
		traces = append(traces, tr)
	}
	return traces, eris.Wrap(rows.Err(), "sqlite: list proposal traces iterate")
}

// --- Translation revisions ---

const revisionColumns = `id, passage_id, attempt_no, source_variant, input_excerpt, translated_excerpt, detected_lang_code, detected_lang_label, untranslated_ratio, quality_decision, provenance, trace_id, created_at`

func (s *SQLiteStore) CreateTranslationRevision(ctx context.Context, rev *model.TranslationRevision) error {
	provenance, err := marshalJSON(rev.Provenance)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal revision provenance")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO translation_revisions (`+revisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.PassageID, rev.AttemptNo, string(rev.SourceVariant), rev.InputExcerpt, rev.TranslatedExcerpt,
		rev.DetectedLangCode, rev.DetectedLangLabel, rev.UntranslatedRatio, rev.QualityDecision,
		provenance, rev.TraceID, rev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert translation revision")
}

func (s *SQLiteStore) ListTranslationRevisions(ctx context.Context, passageID string) ([]model.TranslationRevision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM translation_revisions WHERE passage_id = ? ORDER BY attempt_no`,
		passageID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list translation revisions")
	}
	defer rows.Close()

	var revisions []model.TranslationRevision
	for rows.Next() {
		var r model.TranslationRevision
		var provenance string
		if err := rows.Scan(&r.ID, &r.PassageID, &r.AttemptNo, &r.SourceVariant, &r.InputExcerpt, &r.TranslatedExcerpt,
			&r.DetectedLangCode, &r.DetectedLangLabel, &r.UntranslatedRatio, &r.QualityDecision,
			&provenance, &r.TraceID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan translation revision")
		}
		if err := json.Unmarshal([]byte(provenance), &r.Provenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal revision provenance")
		}
		revisions = append(revisions, r)
	}
	return revisions, eris.Wrap(rows.Err(), "sqlite: list translation revisions iterate")
}

// --- Review decisions ---

func (s *SQLiteStore) CreateReviewDecision(ctx context.Context, decision *model.ReviewDecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_decisions (id, object_kind, object_id, reviewer_id, decision, notes, previous_state, new_state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID, string(decision.ObjectKind), decision.ObjectID, decision.ReviewerID, string(decision.Decision),
		decision.Notes, decision.PreviousState, decision.NewState, decision.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert review decision")
}

func (s *SQLiteStore) ListReviewDecisions(ctx context.Context, objectID string) ([]model.ReviewDecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, object_kind, object_id, reviewer_id, decision, notes, previous_state, new_state, created_at
		 FROM review_decisions WHERE object_id = ? ORDER BY created_at`,
		objectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review decisions")
	}
	defer rows.Close()

	var decisions []model.ReviewDecisionRecord
	for rows.Next() {
		var d model.ReviewDecisionRecord
		if err := rows.Scan(&d.ID, &d.ObjectKind, &d.ObjectID, &d.ReviewerID, &d.Decision,
			&d.Notes, &d.PreviousState, &d.NewState, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list review decisions iterate")
}

// --- Audit log ---

func (s *SQLiteStore) WriteAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	metadata, err := marshalJSON(event.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, actor, action, object_type, object_id, correlation_id, previous_state, new_state, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Actor, event.Action, event.ObjectType, event.ObjectID, event.CorrelationID,
		event.PreviousState, event.NewState, metadata, event.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit event")
}

func (s *SQLiteStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]model.AuditEvent, error) {
	query := `SELECT id, actor, action, object_type, object_id, correlation_id, previous_state, new_state, metadata, created_at
		 FROM audit_events WHERE 1=1`
	var args []any
	if filter.ObjectID != "" {
		query += ` AND object_id = ?`
		args = append(args, filter.ObjectID)
	}
	if filter.CorrelationID != "" {
		query += ` AND correlation_id = ?`
		args = append(args, filter.CorrelationID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var metadata string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.ObjectType, &e.ObjectID, &e.CorrelationID,
			&e.PreviousState, &e.NewState, &metadata, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal audit metadata")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list audit events iterate")
}

// --- Artifacts ---

func (s *SQLiteStore) CreateArtifact(ctx context.Context, artifact *model.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, source_id, artifact_type, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		artifact.ID, artifact.SourceID, artifact.ArtifactType, artifact.Text, artifact.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert artifact")
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, sourceID, artifactType string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, artifact_type, text, created_at FROM artifacts WHERE source_id = ? AND artifact_type = ?`,
		sourceID, artifactType)

	var a model.Artifact
	err := row.Scan(&a.ID, &a.SourceID, &a.ArtifactType, &a.Text, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan artifact")
	}
	return &a, nil
}

// --- Stats ---

func (s *SQLiteStore) Stats(ctx context.Context) (*PipelineStats, error) {
	stats := &PipelineStats{
		IngestionByStatus: map[model.JobStatus]int{},
		ReprocessByStatus: map[model.JobStatus]int{},
		TranslationStates: map[model.TranslationStatus]int{},
		RelevanceStates:   map[model.RelevanceState]int{},
	}

	totals := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM texts`, &stats.Texts},
		{`SELECT COUNT(*) FROM sources`, &stats.Sources},
		{`SELECT COUNT(*) FROM passages`, &stats.Passages},
		{`SELECT COUNT(*) FROM witness_groups`, &stats.WitnessGroups},
	}
	for _, total := range totals {
		if err := s.db.QueryRowContext(ctx, total.query).Scan(total.dest); err != nil {
			return nil, eris.Wrap(err, "sqlite: count stats")
		}
	}

	if err := s.countByGroup(ctx, `SELECT status, COUNT(*) FROM ingestion_jobs GROUP BY status`, func(key string, n int) {
		stats.IngestionByStatus[model.JobStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.countByGroup(ctx, `SELECT status, COUNT(*) FROM reprocess_jobs GROUP BY status`, func(key string, n int) {
		stats.ReprocessByStatus[model.JobStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.countByGroup(ctx, `SELECT translation_status, COUNT(*) FROM passages GROUP BY translation_status`, func(key string, n int) {
		stats.TranslationStates[model.TranslationStatus(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.countByGroup(ctx, `SELECT relevance_state, COUNT(*) FROM passages GROUP BY relevance_state`, func(key string, n int) {
		stats.RelevanceStates[model.RelevanceState(key)] = n
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) countByGroup(ctx context.Context, query string, add func(key string, n int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "sqlite: grouped count")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return eris.Wrap(err, "sqlite: scan grouped count")
		}
		add(key, n)
	}
	return eris.Wrap(rows.Err(), "sqlite: grouped count iterate")
}

// --- Scan helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanText(row scannable) (*model.Text, error) {
	var t model.Text
	var tags string
	err := row.Scan(&t.ID, &t.CanonicalTitle, &t.Region, &tags, &t.SourceCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan text")
	}
	if err := json.Unmarshal([]byte(tags), &t.TraditionTags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tradition tags")
	}
	return &t, nil
}

func scanSource(row scannable) (*model.SourceMaterial, error) {
	var src model.SourceMaterial
	err := row.Scan(&src.ID, &src.TextID, &src.Path, &src.RawSHA256, &src.NormalizedSHA256,
		&src.WitnessGroupID, &src.DuplicateOfID, &src.DigitizationStatus,
		&src.CreatedBy, &src.CreatedAt, &src.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source")
	}
	return &src, nil
}

func scanGroup(row scannable) (*model.WitnessGroup, error) {
	var g model.WitnessGroup
	err := row.Scan(&g.ID, &g.CanonicalTextID, &g.Status, &g.MatchMethod, &g.MatchScore,
		&g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan witness group")
	}
	return &g, nil
}

func scanMember(row scannable) (*model.WitnessGroupMember, error) {
	var m model.WitnessGroupMember
	err := row.Scan(&m.GroupID, &m.SourceID, &m.Role, &m.ParserStrategy, &m.MembershipReason, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan group member")
	}
	return &m, nil
}

func scanPassage(row scannable) (*model.Passage, error) {
	var p model.Passage
	var notes string
	var lastReprocess sql.NullTime
	err := row.Scan(&p.ID, &p.TextID, &p.SourceID, &p.SpanLocator, &p.Original, &p.Normalized, &p.NormalizedLanguage,
		&p.ExtractionConf, &p.DetectedLangCode, &p.DetectedLangLabel, &p.LangConfidence,
		&p.TranslationStatus, &p.UntranslatedRatio, &p.NeedsReprocess, &p.ReprocessCount,
		&lastReprocess, &p.TranslationSource, &p.TranslationTraceID,
		&p.UsabilityScore, &p.RelevanceScore, &p.RelevanceState, &notes, &p.QualityVersion,
		&p.ReviewerState, &p.PublishState, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan passage")
	}
	if lastReprocess.Valid {
		p.LastReprocessAt = &lastReprocess.Time
	}
	if err := json.Unmarshal([]byte(notes), &p.QualityNotes); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal quality notes")
	}
	return &p, nil
}

func scanIngestionJob(row scannable) (*model.IngestionJob, error) {
	var j model.IngestionJob
	var errCtx string
	err := row.Scan(&j.ID, &j.SourceID, &j.IdempotencyKey, &j.Status, &j.AttemptCount, &j.MaxAttempts,
		&j.ParserStrategy, &j.ParserName, &j.LastError, &j.ErrorCode, &errCtx, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ingestion job")
	}
	if err := json.Unmarshal([]byte(errCtx), &j.ErrorContext); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal error context")
	}
	return &j, nil
}

func scanReprocessJob(row scannable) (*model.ReprocessJob, error) {
	var j model.ReprocessJob
	var errCtx string
	err := row.Scan(&j.ID, &j.PassageID, &j.IdempotencyKey, &j.Status, &j.TriggerMode, &j.TriggerReason,
		&j.AttemptCount, &j.MaxAttempts, &j.UsedPDFCrossref, &j.UsedExternalReference,
		&j.LastError, &j.ErrorCode, &errCtx, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan reprocess job")
	}
	if err := json.Unmarshal([]byte(errCtx), &j.ErrorContext); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal error context")
	}
	return &j, nil
}

func scanTag(row scannable) (*model.RitualPatternTag, error) {
	var t model.RitualPatternTag
	var evidence string
	err := row.Scan(&t.ID, &t.Dimension, &t.Term, &t.Confidence, &evidence, &t.ReviewerState,
		&t.Rationale, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan pattern tag")
	}
	if err := json.Unmarshal([]byte(evidence), &t.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evidence ids")
	}
	return &t, nil
}

func scanLink(row scannable) (*model.CommonalityLink, error) {
	var l model.CommonalityLink
	var evidence string
	err := row.Scan(&l.ID, &l.SourcePassageID, &l.TargetPassageID, &l.RelationType, &l.SimilarityScore,
		&evidence, &l.ReviewerState, &l.DecisionNote, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan commonality link")
	}
	if err := json.Unmarshal([]byte(evidence), &l.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evidence ids")
	}
	return &l, nil
}

func scanFlag(row scannable) (*model.FlagRecord, error) {
	var f model.FlagRecord
	var evidence string
	err := row.Scan(&f.ID, &f.PassageID, &f.FlagType, &f.Severity, &f.Rationale,
		&evidence, &f.ReviewerState, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan flag")
	}
	if err := json.Unmarshal([]byte(evidence), &f.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evidence ids")
	}
	return &f, nil
}
