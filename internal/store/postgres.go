package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/three-lanterns/curator/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ingestion-loop operations.
var preparedStatements = map[string]string{
	"get_source_by_path":    `SELECT ` + sourceColumns + ` FROM sources WHERE path = $1`,
	"sources_by_raw_hash":   `SELECT ` + sourceColumns + ` FROM sources WHERE raw_sha256 = $1 ORDER BY created_at`,
	"sources_by_norm_hash":  `SELECT ` + sourceColumns + ` FROM sources WHERE normalized_sha256 = $1 ORDER BY created_at`,
	"get_passage":           `SELECT ` + passageColumns + ` FROM passages WHERE id = $1`,
	"insert_audit_event":    `INSERT INTO audit_events (id, actor, action, object_type, object_id, correlation_id, previous_state, new_state, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"insert_proposal_trace": `INSERT INTO proposal_traces (` + traceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
	"bundle_trace_exists":   `SELECT 1 FROM proposal_traces WHERE object_id = $1 AND proposal_type = 'bundle' AND failure_reason = '' LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS texts (
	id              TEXT PRIMARY KEY,
	canonical_title TEXT NOT NULL,
	region          TEXT NOT NULL DEFAULT '',
	tradition_tags  JSONB NOT NULL DEFAULT 'null',
	source_count    INTEGER NOT NULL DEFAULT 0,
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
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
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS witness_groups (
	id                TEXT PRIMARY KEY,
	canonical_text_id TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	match_method      TEXT NOT NULL,
	match_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS witness_group_members (
	group_id          TEXT NOT NULL REFERENCES witness_groups(id),
	source_id         TEXT NOT NULL REFERENCES sources(id),
	member_role       TEXT NOT NULL,
	parser_strategy   TEXT NOT NULL DEFAULT '',
	membership_reason TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (group_id, source_id)
);

CREATE TABLE IF NOT EXISTS consolidated_passages (
	id              TEXT PRIMARY KEY,
	group_id        TEXT NOT NULL REFERENCES witness_groups(id),
	merged_text     TEXT NOT NULL,
	passage_hash    TEXT NOT NULL,
	usability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_state TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS consolidated_passage_sources (
	consolidated_id  TEXT NOT NULL REFERENCES consolidated_passages(id) ON DELETE CASCADE,
	passage_id       TEXT NOT NULL,
	source_id        TEXT NOT NULL,
	similarity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
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
	extraction_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	detected_lang_code    TEXT NOT NULL DEFAULT '',
	detected_lang_label   TEXT NOT NULL DEFAULT '',
	lang_confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	translation_status    TEXT NOT NULL,
	untranslated_ratio    DOUBLE PRECISION NOT NULL DEFAULT 0,
	needs_reprocess       BOOLEAN NOT NULL DEFAULT FALSE,
	reprocess_count       INTEGER NOT NULL DEFAULT 0,
	last_reprocess_at     TIMESTAMPTZ,
	translation_provider  TEXT NOT NULL DEFAULT '',
	translation_trace_id  TEXT NOT NULL DEFAULT '',
	usability_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_state       TEXT NOT NULL,
	quality_notes         JSONB NOT NULL DEFAULT 'null',
	quality_version       TEXT NOT NULL DEFAULT '',
	reviewer_state        TEXT NOT NULL,
	publish_state         TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
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
	error_context   JSONB NOT NULL DEFAULT 'null',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
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
	used_pdf_crossref       BOOLEAN NOT NULL DEFAULT FALSE,
	used_external_reference BOOLEAN NOT NULL DEFAULT FALSE,
	last_error              TEXT NOT NULL DEFAULT '',
	error_code              TEXT NOT NULL DEFAULT '',
	error_context           JSONB NOT NULL DEFAULT 'null',
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS job_attempts (
	id           TEXT PRIMARY KEY,
	job_id       TEXT NOT NULL,
	attempt_no   INTEGER NOT NULL,
	status       TEXT NOT NULL,
	error_detail TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_tags (
	id             TEXT PRIMARY KEY,
	dimension      TEXT NOT NULL,
	term           TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	evidence_ids   JSONB NOT NULL DEFAULT 'null',
	reviewer_state TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS commonality_links (
	id                TEXT PRIMARY KEY,
	source_passage_id TEXT NOT NULL,
	target_passage_id TEXT NOT NULL,
	relation_type     TEXT NOT NULL,
	similarity_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	evidence_ids      JSONB NOT NULL DEFAULT 'null',
	reviewer_state    TEXT NOT NULL,
	decision_note     TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
	id             TEXT PRIMARY KEY,
	passage_id     TEXT NOT NULL,
	flag_type      TEXT NOT NULL,
	severity       TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	evidence_ids   JSONB NOT NULL DEFAULT 'null',
	reviewer_state TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_terms (
	id           TEXT PRIMARY KEY,
	dimension    TEXT NOT NULL,
	term         TEXT NOT NULL,
	rationale    TEXT NOT NULL DEFAULT '',
	evidence_ids JSONB NOT NULL DEFAULT 'null',
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL
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
	usage           JSONB NOT NULL DEFAULT 'null',
	retry_count     INTEGER NOT NULL DEFAULT 0,
	failure_reason  TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
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
	untranslated_ratio  DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_decision    TEXT NOT NULL DEFAULT '',
	provenance          JSONB NOT NULL DEFAULT 'null',
	trace_id            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL
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
	created_at     TIMESTAMPTZ NOT NULL
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
	metadata       JSONB NOT NULL DEFAULT 'null',
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL,
	artifact_type TEXT NOT NULL,
	text          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Texts ---

func (s *PostgresStore) CreateText(ctx context.Context, text *model.Text) error {
	tags, err := json.Marshal(text.TraditionTags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tradition tags")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO texts (`+textColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		text.ID, text.CanonicalTitle, text.Region, tags, text.SourceCount, text.CreatedBy, text.CreatedAt, text.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert text")
}

func (s *PostgresStore) GetText(ctx context.Context, id string) (*model.Text, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+textColumns+` FROM texts WHERE id = $1`, id)
	return pgScanText(row)
}

func (s *PostgresStore) UpdateText(ctx context.Context, text *model.Text) error {
	tags, err := json.Marshal(text.TraditionTags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tradition tags")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE texts SET canonical_title = $1, region = $2, tradition_tags = $3, source_count = $4, updated_at = $5 WHERE id = $6`,
		text.CanonicalTitle, text.Region, tags, text.SourceCount, time.Now().UTC(), text.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update text %s", text.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("text not found: %s", text.ID)
	}
	return nil
}

func (s *PostgresStore) SearchTexts(ctx context.Context, query string, limit int) ([]model.Text, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+textColumns+` FROM texts WHERE canonical_title ILIKE '%' || $1 || '%' ORDER BY canonical_title LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search texts")
	}
	defer rows.Close()

	var texts []model.Text
	for rows.Next() {
		t, err := pgScanText(rows)
		if err != nil {
			return nil, err
		}
		texts = append(texts, *t)
	}
	return texts, eris.Wrap(rows.Err(), "postgres: search texts iterate")
}

// --- Source materials ---

func (s *PostgresStore) CreateSource(ctx context.Context, source *model.SourceMaterial) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		source.ID, source.TextID, source.Path, source.RawSHA256, source.NormalizedSHA256,
		source.WitnessGroupID, source.DuplicateOfID, source.DigitizationStatus,
		source.CreatedBy, source.CreatedAt, source.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert source")
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (*model.SourceMaterial, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return pgScanSource(row)
}

func (s *PostgresStore) UpdateSource(ctx context.Context, source *model.SourceMaterial) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET text_id = $1, witness_group_id = $2, duplicate_of_id = $3, digitization_status = $4, updated_at = $5 WHERE id = $6`,
		source.TextID, source.WitnessGroupID, source.DuplicateOfID, source.DigitizationStatus, time.Now().UTC(), source.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update source %s", source.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %s", source.ID)
	}
	return nil
}

func (s *PostgresStore) SourceByPath(ctx context.Context, path string) (*model.SourceMaterial, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE path = $1`, path)
	return pgScanSource(row)
}

func (s *PostgresStore) SourcesByRawHash(ctx context.Context, hash string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE raw_sha256 = $1 ORDER BY created_at`, hash)
}

func (s *PostgresStore) SourcesByNormalizedHash(ctx context.Context, hash string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE normalized_sha256 = $1 ORDER BY created_at`, hash)
}

func (s *PostgresStore) SourcesByTextID(ctx context.Context, textID string) ([]model.SourceMaterial, error) {
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE text_id = $1 ORDER BY created_at`, textID)
}

func (s *PostgresStore) RecentSources(ctx context.Context, limit int) ([]model.SourceMaterial, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listSources(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) listSources(ctx context.Context, query string, args ...any) ([]model.SourceMaterial, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var sources []model.SourceMaterial
	for rows.Next() {
		src, err := pgScanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

// --- Witness groups ---

func (s *PostgresStore) CreateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO witness_groups (`+groupColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		group.ID, group.CanonicalTextID, string(group.Status), string(group.MatchMethod),
		group.MatchScore, group.CreatedBy, group.CreatedAt, group.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert witness group")
}

func (s *PostgresStore) GetWitnessGroup(ctx context.Context, id string) (*model.WitnessGroup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM witness_groups WHERE id = $1`, id)
	return pgScanGroup(row)
}

func (s *PostgresStore) UpdateWitnessGroup(ctx context.Context, group *model.WitnessGroup) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE witness_groups SET canonical_text_id = $1, status = $2, match_method = $3, match_score = $4, updated_at = $5 WHERE id = $6`,
		group.CanonicalTextID, string(group.Status), string(group.MatchMethod), group.MatchScore, time.Now().UTC(), group.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update witness group %s", group.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("witness group not found: %s", group.ID)
	}
	return nil
}

func (s *PostgresStore) ListWitnessGroups(ctx context.Context, status model.GroupStatus, limit int) ([]model.WitnessGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM witness_groups WHERE true`
	args := []any{}
	argIdx := 1
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(status))
		argIdx++
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list witness groups")
	}
	defer rows.Close()

	var groups []model.WitnessGroup
	for rows.Next() {
		g, err := pgScanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, eris.Wrap(rows.Err(), "postgres: list witness groups iterate")
}

func (s *PostgresStore) CreateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO witness_group_members (`+memberColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		member.GroupID, member.SourceID, string(member.Role), member.ParserStrategy, member.MembershipReason, member.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert group member")
}

func (s *PostgresStore) GetGroupMember(ctx context.Context, groupID, sourceID string) (*model.WitnessGroupMember, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM witness_group_members WHERE group_id = $1 AND source_id = $2`,
		groupID, sourceID)
	return pgScanMember(row)
}

func (s *PostgresStore) UpdateGroupMember(ctx context.Context, member *model.WitnessGroupMember) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE witness_group_members SET member_role = $1, parser_strategy = $2, membership_reason = $3 WHERE group_id = $4 AND source_id = $5`,
		string(member.Role), member.ParserStrategy, member.MembershipReason, member.GroupID, member.SourceID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update group member %s/%s", member.GroupID, member.SourceID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("group member not found: %s/%s", member.GroupID, member.SourceID)
	}
	return nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]model.WitnessGroupMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM witness_group_members WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list group members")
	}
	defer rows.Close()

	var members []model.WitnessGroupMember
	for rows.Next() {
		m, err := pgScanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, eris.Wrap(rows.Err(), "postgres: list group members iterate")
}

// --- Consolidated passages ---

func (s *PostgresStore) DeleteConsolidatedPassages(ctx context.Context, groupID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM consolidated_passages WHERE group_id = $1`, groupID)
	return eris.Wrapf(err, "postgres: delete consolidated passages for group %s", groupID)
}

func (s *PostgresStore) CreateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consolidated_passages (`+consolidatedColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cp.ID, cp.GroupID, cp.MergedText, cp.PassageHash, cp.UsabilityScore, cp.RelevanceScore, string(cp.RelevanceState), cp.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert consolidated passage")
}

func (s *PostgresStore) UpdateConsolidatedPassage(ctx context.Context, cp *model.ConsolidatedPassage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE consolidated_passages SET merged_text = $1, passage_hash = $2, usability_score = $3, relevance_score = $4, relevance_state = $5 WHERE id = $6`,
		cp.MergedText, cp.PassageHash, cp.UsabilityScore, cp.RelevanceScore, string(cp.RelevanceState), cp.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update consolidated passage %s", cp.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("consolidated passage not found: %s", cp.ID)
	}
	return nil
}

func (s *PostgresStore) ListConsolidatedPassages(ctx context.Context, groupID string) ([]model.ConsolidatedPassage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+consolidatedColumns+` FROM consolidated_passages WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list consolidated passages")
	}
	defer rows.Close()

	var entries []model.ConsolidatedPassage
	for rows.Next() {
		var cp model.ConsolidatedPassage
		if err := rows.Scan(&cp.ID, &cp.GroupID, &cp.MergedText, &cp.PassageHash,
			&cp.UsabilityScore, &cp.RelevanceScore, &cp.RelevanceState, &cp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan consolidated passage")
		}
		entries = append(entries, cp)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list consolidated passages iterate")
}

func (s *PostgresStore) CreateConsolidatedPassageSource(ctx context.Context, link *model.ConsolidatedPassageSource) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consolidated_passage_sources (consolidated_id, passage_id, source_id, similarity_score, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		link.ConsolidatedID, link.PassageID, link.SourceID, link.SimilarityScore, link.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert consolidated passage source")
}

// --- Passages ---

func (s *PostgresStore) CreatePassage(ctx context.Context, p *model.Passage) error {
	notes, err := json.Marshal(p.QualityNotes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quality notes")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO passages (`+passageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`,
		p.ID, p.TextID, p.SourceID, p.SpanLocator, p.Original, p.Normalized, p.NormalizedLanguage,
		p.ExtractionConf, p.DetectedLangCode, p.DetectedLangLabel, p.LangConfidence,
		string(p.TranslationStatus), p.UntranslatedRatio, p.NeedsReprocess, p.ReprocessCount,
		p.LastReprocessAt, p.TranslationSource, p.TranslationTraceID,
		p.UsabilityScore, p.RelevanceScore, string(p.RelevanceState), notes, p.QualityVersion,
		string(p.ReviewerState), string(p.PublishState), p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert passage")
}

func (s *PostgresStore) GetPassage(ctx context.Context, id string) (*model.Passage, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE id = $1`, id)
	return pgScanPassage(row)
}

func (s *PostgresStore) UpdatePassage(ctx context.Context, p *model.Passage) error {
	notes, err := json.Marshal(p.QualityNotes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quality notes")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE passages SET excerpt_normalized = $1, normalized_language = $2, detected_lang_code = $3, detected_lang_label = $4,
		 lang_confidence = $5, translation_status = $6, untranslated_ratio = $7, needs_reprocess = $8, reprocess_count = $9,
		 last_reprocess_at = $10, translation_provider = $11, translation_trace_id = $12, usability_score = $13, relevance_score = $14,
		 relevance_state = $15, quality_notes = $16, quality_version = $17, reviewer_state = $18, publish_state = $19, updated_at = $20
		 WHERE id = $21`,
		p.Normalized, p.NormalizedLanguage, p.DetectedLangCode, p.DetectedLangLabel,
		p.LangConfidence, string(p.TranslationStatus), p.UntranslatedRatio, p.NeedsReprocess, p.ReprocessCount,
		p.LastReprocessAt, p.TranslationSource, p.TranslationTraceID, p.UsabilityScore, p.RelevanceScore,
		string(p.RelevanceState), notes, p.QualityVersion, string(p.ReviewerState), string(p.PublishState), time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update passage %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("passage not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) ListPassages(ctx context.Context, filter PassageFilter) ([]model.Passage, error) {
	query := `SELECT ` + passageColumns + ` FROM passages WHERE true`
	args := []any{}
	argIdx := 1

	appendFilter := func(clause string, value any) {
		query += fmt.Sprintf(` AND %s = $%d`, clause, argIdx)
		args = append(args, value)
		argIdx++
	}
	if filter.TextID != "" {
		appendFilter("text_id", filter.TextID)
	}
	if filter.SourceID != "" {
		appendFilter("source_id", filter.SourceID)
	}
	if filter.TranslationStatus != "" {
		appendFilter("translation_status", string(filter.TranslationStatus))
	}
	if filter.RelevanceState != "" {
		appendFilter("relevance_state", string(filter.RelevanceState))
	}
	if filter.ReviewerState != "" {
		appendFilter("reviewer_state", string(filter.ReviewerState))
	}
	if filter.NeedsReprocess != nil {
		appendFilter("needs_reprocess", *filter.NeedsReprocess)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}
	return s.listPassageRows(ctx, query, args...)
}

func (s *PostgresStore) PassagesBySourceIDs(ctx context.Context, sourceIDs []string) ([]model.Passage, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	return s.listPassageRows(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE source_id = ANY($1) ORDER BY created_at`, sourceIDs)
}

func (s *PostgresStore) ListPeerPassages(ctx context.Context, limit int) ([]model.Passage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listPassageRows(ctx,
		`SELECT `+passageColumns+` FROM passages WHERE relevance_state != $1 ORDER BY created_at DESC LIMIT $2`,
		string(model.RelevanceFiltered), limit)
}

func (s *PostgresStore) SearchPassages(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listPassageRows(ctx,
		`SELECT `+passageColumns+` FROM passages
		 WHERE excerpt_normalized ILIKE '%' || $1 || '%' OR excerpt_original ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC LIMIT $2`,
		query, limit)
}

func (s *PostgresStore) listPassageRows(ctx context.Context, query string, args ...any) ([]model.Passage, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list passages")
	}
	defer rows.Close()

	var passages []model.Passage
	for rows.Next() {
		p, err := pgScanPassage(rows)
		if err != nil {
			return nil, err
		}
		passages = append(passages, *p)
	}
	return passages, eris.Wrap(rows.Err(), "postgres: list passages iterate")
}

// --- Ingestion jobs ---

func (s *PostgresStore) CreateIngestionJob(ctx context.Context, job *model.IngestionJob) error {
	errCtx, err := json.Marshal(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error context")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_jobs (`+ingestionJobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.SourceID, job.IdempotencyKey, string(job.Status), job.AttemptCount, job.MaxAttempts,
		job.ParserStrategy, job.ParserName, job.LastError, string(job.ErrorCode), errCtx,
		job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert ingestion job")
}

func (s *PostgresStore) GetIngestionJob(ctx context.Context, id string) (*model.IngestionJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ingestionJobColumns+` FROM ingestion_jobs WHERE id = $1`, id)
	return pgScanIngestionJob(row)
}

func (s *PostgresStore) IngestionJobByKey(ctx context.Context, idempotencyKey string) (*model.IngestionJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ingestionJobColumns+` FROM ingestion_jobs WHERE idempotency_key = $1`, idempotencyKey)
	return pgScanIngestionJob(row)
}

func (s *PostgresStore) UpdateIngestionJob(ctx context.Context, job *model.IngestionJob) error {
	errCtx, err := json.Marshal(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error context")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_jobs SET status = $1, attempt_count = $2, parser_strategy = $3, parser_name = $4,
		 last_error = $5, error_code = $6, error_context = $7, updated_at = $8 WHERE id = $9`,
		string(job.Status), job.AttemptCount, job.ParserStrategy, job.ParserName,
		job.LastError, string(job.ErrorCode), errCtx, time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update ingestion job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingestion job not found: %s", job.ID)
	}
	return nil
}

// ClaimNextIngestionJob atomically moves the oldest pending job to running.
// SKIP LOCKED lets concurrent workers claim without blocking each other.
func (s *PostgresStore) ClaimNextIngestionJob(ctx context.Context) (*model.IngestionJob, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE ingestion_jobs SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		 WHERE id = (SELECT id FROM ingestion_jobs WHERE status = $3 ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED)
		 RETURNING `+ingestionJobColumns,
		string(model.JobRunning), time.Now().UTC(), string(model.JobPending),
	)
	return pgScanIngestionJob(row)
}

func (s *PostgresStore) ListIngestionJobs(ctx context.Context, filter JobFilter) ([]model.IngestionJob, error) {
	query := `SELECT ` + ingestionJobColumns + ` FROM ingestion_jobs WHERE true`
	args := []any{}
	argIdx := 1
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingestion jobs")
	}
	defer rows.Close()

	var jobs []model.IngestionJob
	for rows.Next() {
		j, err := pgScanIngestionJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list ingestion jobs iterate")
}

// --- Reprocess jobs ---

func (s *PostgresStore) CreateReprocessJob(ctx context.Context, job *model.ReprocessJob) error {
	errCtx, err := json.Marshal(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error context")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reprocess_jobs (`+reprocessJobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, job.PassageID, job.IdempotencyKey, string(job.Status), string(job.TriggerMode), job.TriggerReason,
		job.AttemptCount, job.MaxAttempts, job.UsedPDFCrossref, job.UsedExternalReference,
		job.LastError, string(job.ErrorCode), errCtx, job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert reprocess job")
}

func (s *PostgresStore) GetReprocessJob(ctx context.Context, id string) (*model.ReprocessJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs WHERE id = $1`, id)
	return pgScanReprocessJob(row)
}

func (s *PostgresStore) ReprocessJobByKey(ctx context.Context, idempotencyKey string) (*model.ReprocessJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs WHERE idempotency_key = $1`, idempotencyKey)
	return pgScanReprocessJob(row)
}

func (s *PostgresStore) ActiveReprocessJobForPassage(ctx context.Context, passageID string) (*model.ReprocessJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reprocessJobColumns+` FROM reprocess_jobs
		 WHERE passage_id = $1 AND status IN ($2, $3) ORDER BY created_at LIMIT 1`,
		passageID, string(model.JobPending), string(model.JobRunning),
	)
	return pgScanReprocessJob(row)
}

func (s *PostgresStore) UpdateReprocessJob(ctx context.Context, job *model.ReprocessJob) error {
	errCtx, err := json.Marshal(job.ErrorContext)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error context")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE reprocess_jobs SET status = $1, attempt_count = $2, used_pdf_crossref = $3, used_external_reference = $4,
		 last_error = $5, error_code = $6, error_context = $7, updated_at = $8 WHERE id = $9`,
		string(job.Status), job.AttemptCount, job.UsedPDFCrossref, job.UsedExternalReference,
		job.LastError, string(job.ErrorCode), errCtx, time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update reprocess job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("reprocess job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) ClaimNextReprocessJob(ctx context.Context) (*model.ReprocessJob, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE reprocess_jobs SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		 WHERE id = (SELECT id FROM reprocess_jobs WHERE status = $3 ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED)
		 RETURNING `+reprocessJobColumns,
		string(model.JobRunning), time.Now().UTC(), string(model.JobPending),
	)
	return pgScanReprocessJob(row)
}

func (s *PostgresStore) ListReprocessJobs(ctx context.Context, filter JobFilter) ([]model.ReprocessJob, error) {
	query := `SELECT ` + reprocessJobColumns + ` FROM reprocess_jobs WHERE true`
	args := []any{}
	argIdx := 1
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reprocess jobs")
	}
	defer rows.Close()

	var jobs []model.ReprocessJob
	for rows.Next() {
		j, err := pgScanReprocessJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list reprocess jobs iterate")
}

// --- Job attempts ---

func (s *PostgresStore) CreateJobAttempt(ctx context.Context, attempt *model.JobAttempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_attempts (id, job_id, attempt_no, status, error_detail, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.ID, attempt.JobID, attempt.AttemptNo, string(attempt.Status), attempt.ErrorDetail, attempt.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert job attempt")
}

func (s *PostgresStore) ListJobAttempts(ctx context.Context, jobID string) ([]model.JobAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, attempt_no, status, error_detail, created_at FROM job_attempts WHERE job_id = $1 ORDER BY attempt_no`,
		jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list job attempts")
	}
	defer rows.Close()

	var attempts []model.JobAttempt
	for rows.Next() {
		var a model.JobAttempt
		if err := rows.Scan(&a.ID, &a.JobID, &a.AttemptNo, &a.Status, &a.ErrorDetail, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job attempt")
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: list job attempts iterate")
}

// --- Pattern tags ---

func (s *PostgresStore) CreateTag(ctx context.Context, t *model.RitualPatternTag) error {
	evidence, err := json.Marshal(t.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pattern_tags (`+tagColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Dimension, t.Term, t.Confidence, evidence, string(t.ReviewerState),
		t.Rationale, t.CreatedAt, t.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert pattern tag")
}

func (s *PostgresStore) GetTag(ctx context.Context, id string) (*model.RitualPatternTag, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tagColumns+` FROM pattern_tags WHERE id = $1`, id)
	return pgScanTag(row)
}

func (s *PostgresStore) UpdateTag(ctx context.Context, t *model.RitualPatternTag) error {
	evidence, err := json.Marshal(t.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pattern_tags SET dimension = $1, term = $2, confidence = $3, evidence_ids = $4, reviewer_state = $5, rationale = $6, updated_at = $7 WHERE id = $8`,
		t.Dimension, t.Term, t.Confidence, evidence, string(t.ReviewerState), t.Rationale, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pattern tag %s", t.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pattern tag not found: %s", t.ID)
	}
	return nil
}

func (s *PostgresStore) ListTagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.RitualPatternTag, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tagColumns+` FROM pattern_tags WHERE reviewer_state = $1 ORDER BY created_at LIMIT $2`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pattern tags")
	}
	defer rows.Close()

	var tags []model.RitualPatternTag
	for rows.Next() {
		t, err := pgScanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	return tags, eris.Wrap(rows.Err(), "postgres: list pattern tags iterate")
}

// --- Commonality links ---

func (s *PostgresStore) CreateLink(ctx context.Context, link *model.CommonalityLink) error {
	evidence, err := json.Marshal(link.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO commonality_links (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		link.ID, link.SourcePassageID, link.TargetPassageID, link.RelationType, link.SimilarityScore,
		evidence, string(link.ReviewerState), link.DecisionNote, link.CreatedAt, link.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert commonality link")
}

func (s *PostgresStore) GetLink(ctx context.Context, id string) (*model.CommonalityLink, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM commonality_links WHERE id = $1`, id)
	return pgScanLink(row)
}

func (s *PostgresStore) UpdateLink(ctx context.Context, link *model.CommonalityLink) error {
	evidence, err := json.Marshal(link.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE commonality_links SET relation_type = $1, similarity_score = $2, evidence_ids = $3, reviewer_state = $4, decision_note = $5, updated_at = $6 WHERE id = $7`,
		link.RelationType, link.SimilarityScore, evidence, string(link.ReviewerState), link.DecisionNote, time.Now().UTC(), link.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update commonality link %s", link.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("commonality link not found: %s", link.ID)
	}
	return nil
}

func (s *PostgresStore) ListLinksByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.CommonalityLink, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM commonality_links WHERE reviewer_state = $1 ORDER BY created_at LIMIT $2`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list commonality links")
	}
	defer rows.Close()

	var links []model.CommonalityLink
	for rows.Next() {
		l, err := pgScanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, eris.Wrap(rows.Err(), "postgres: list commonality links iterate")
}

// --- Flags ---

func (s *PostgresStore) CreateFlag(ctx context.Context, flag *model.FlagRecord) error {
	evidence, err := json.Marshal(flag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO flags (`+flagColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		flag.ID, flag.PassageID, flag.FlagType, flag.Severity, flag.Rationale,
		evidence, string(flag.ReviewerState), flag.CreatedAt, flag.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert flag")
}

func (s *PostgresStore) GetFlag(ctx context.Context, id string) (*model.FlagRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE id = $1`, id)
	return pgScanFlag(row)
}

func (s *PostgresStore) UpdateFlag(ctx context.Context, flag *model.FlagRecord) error {
	evidence, err := json.Marshal(flag.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE flags SET severity = $1, rationale = $2, evidence_ids = $3, reviewer_state = $4, updated_at = $5 WHERE id = $6`,
		flag.Severity, flag.Rationale, evidence, string(flag.ReviewerState), time.Now().UTC(), flag.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update flag %s", flag.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("flag not found: %s", flag.ID)
	}
	return nil
}

func (s *PostgresStore) FlagByPassageAndType(ctx context.Context, passageID, flagType string) (*model.FlagRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE passage_id = $1 AND flag_type = $2 ORDER BY created_at LIMIT 1`,
		passageID, flagType)
	return pgScanFlag(row)
}

func (s *PostgresStore) ListFlagsByState(ctx context.Context, state model.ReviewerState, limit int) ([]model.FlagRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE reviewer_state = $1 ORDER BY created_at LIMIT $2`,
		string(state), limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flags")
	}
	defer rows.Close()

	var flags []model.FlagRecord
	for rows.Next() {
		f, err := pgScanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: list flags iterate")
}

// --- Pending vocabulary terms ---

func (s *PostgresStore) CreatePendingTerm(ctx context.Context, term *model.PendingTerm) error {
	evidence, err := json.Marshal(term.EvidenceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pending_terms (id, dimension, term, rationale, evidence_ids, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		term.ID, term.Dimension, term.Term, term.Rationale, evidence, term.Status, term.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert pending term")
}

func (s *PostgresStore) ListPendingTerms(ctx context.Context, status string, limit int) ([]model.PendingTerm, error) {
	query := `SELECT id, dimension, term, rationale, evidence_ids, status, created_at FROM pending_terms WHERE true`
	args := []any{}
	argIdx := 1
	if status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, status)
		argIdx++
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending terms")
	}
	defer rows.Close()

	var terms []model.PendingTerm
	for rows.Next() {
		var t model.PendingTerm
		var evidence []byte
		if err := rows.Scan(&t.ID, &t.Dimension, &t.Term, &t.Rationale, &evidence, &t.Status, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending term")
		}
		if err := json.Unmarshal(evidence, &t.EvidenceIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence ids")
		}
		terms = append(terms, t)
	}
	return terms, eris.Wrap(rows.Err(), "postgres: list pending terms iterate")
}

// --- Proposal traces ---

func (s *PostgresStore) WriteProposalTrace(ctx context.Context, trace *model.ProposalTrace) error {
	usage, err := json.Marshal(trace.Usage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trace usage")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO proposal_traces (`+traceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		trace.ID, trace.ObjectType, trace.ObjectID, trace.ProposalType, trace.IdempotencyKey,
		trace.ModelName, trace.PromptVersion, trace.PromptHash, trace.ResponseHash,
		usage, trace.RetryCount, trace.FailureReason, trace.CreatedBy, trace.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert proposal trace")
}

func (s *PostgresStore) SuccessfulBundleTraceExists(ctx context.Context, passageID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM proposal_traces WHERE object_id = $1 AND proposal_type = 'bundle' AND failure_reason = '' LIMIT 1`,
		passageID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: check bundle trace")
	}
	return true, nil
}

func (s *PostgresStore) ListProposalTraces(ctx context.Context, objectID string, limit int) ([]model.ProposalTrace, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+traceColumns+` FROM proposal_traces WHERE object_id = $1 ORDER BY created_at DESC LIMIT $2`,
		objectID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposal traces")
	}
	defer rows.Close()

	var traces []model.ProposalTrace
	for rows.Next() {
		var tr model.ProposalTrace
		var usage []byte
		if err := rows.Scan(&tr.ID, &tr.ObjectType, &tr.ObjectID, &tr.ProposalType, &tr.IdempotencyKey,
			&tr.ModelName, &tr.PromptVersion, &tr.PromptHash, &tr.ResponseHash,
			&usage, &tr.RetryCount, &tr.FailureReason, &tr.CreatedBy, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal trace")
		}
		if err := json.Unmarshal(usage, &tr.Usage); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trace usage")
		}
		traces = append(traces, tr)
	}
	return traces, eris.Wrap(rows.Err(), "postgres: list proposal traces iterate")
}

// --- Translation revisions ---

func (s *PostgresStore) CreateTranslationRevision(ctx context.Context, rev *model.TranslationRevision) error {
	provenance, err := json.Marshal(rev.Provenance)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal revision provenance")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO translation_revisions (`+revisionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rev.ID, rev.PassageID, rev.AttemptNo, string(rev.SourceVariant), rev.InputExcerpt, rev.TranslatedExcerpt,
		rev.DetectedLangCode, rev.DetectedLangLabel, rev.UntranslatedRatio, rev.QualityDecision,
		provenance, rev.TraceID, rev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert translation revision")
}

func (s *PostgresStore) ListTranslationRevisions(ctx context.Context, passageID string) ([]model.TranslationRevision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+revisionColumns+` FROM translation_revisions WHERE passage_id = $1 ORDER BY attempt_no`,
		passageID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list translation revisions")
	}
	defer rows.Close()

	var revisions []model.TranslationRevision
	for rows.Next() {
		var r model.TranslationRevision
		var provenance []byte
		if err := rows.Scan(&r.ID, &r.PassageID, &r.AttemptNo, &r.SourceVariant, &r.InputExcerpt, &r.TranslatedExcerpt,
			&r.DetectedLangCode, &r.DetectedLangLabel, &r.UntranslatedRatio, &r.QualityDecision,
			&provenance, &r.TraceID, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan translation revision")
		}
		if err := json.Unmarshal(provenance, &r.Provenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal revision provenance")
		}
		revisions = append(revisions, r)
	}
	return revisions, eris.Wrap(rows.Err(), "postgres: list translation revisions iterate")
}

// --- Review decisions ---

func (s *PostgresStore) CreateReviewDecision(ctx context.Context, decision *model.ReviewDecisionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_decisions (id, object_kind, object_id, reviewer_id, decision, notes, previous_state, new_state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		decision.ID, string(decision.ObjectKind), decision.ObjectID, decision.ReviewerID, string(decision.Decision),
		decision.Notes, decision.PreviousState, decision.NewState, decision.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert review decision")
}

func (s *PostgresStore) ListReviewDecisions(ctx context.Context, objectID string) ([]model.ReviewDecisionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, object_kind, object_id, reviewer_id, decision, notes, previous_state, new_state, created_at
		 FROM review_decisions WHERE object_id = $1 ORDER BY created_at`,
		objectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review decisions")
	}
	defer rows.Close()

	var decisions []model.ReviewDecisionRecord
	for rows.Next() {
		var d model.ReviewDecisionRecord
		if err := rows.Scan(&d.ID, &d.ObjectKind, &d.ObjectID, &d.ReviewerID, &d.Decision,
			&d.Notes, &d.PreviousState, &d.NewState, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list review decisions iterate")
}

// --- Audit log ---

func (s *PostgresStore) WriteAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit metadata")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor, action, object_type, object_id, correlation_id, previous_state, new_state, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.Actor, event.Action, event.ObjectType, event.ObjectID, event.CorrelationID,
		event.PreviousState, event.NewState, metadata, event.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit event")
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]model.AuditEvent, error) {
	query := `SELECT id, actor, action, object_type, object_id, correlation_id, previous_state, new_state, metadata, created_at
		 FROM audit_events WHERE true`
	args := []any{}
	argIdx := 1
	if filter.ObjectID != "" {
		query += fmt.Sprintf(` AND object_id = $%d`, argIdx)
		args = append(args, filter.ObjectID)
		argIdx++
	}
	if filter.CorrelationID != "" {
		query += fmt.Sprintf(` AND correlation_id = $%d`, argIdx)
		args = append(args, filter.CorrelationID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.ObjectType, &e.ObjectID, &e.CorrelationID,
			&e.PreviousState, &e.NewState, &metadata, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal audit metadata")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list audit events iterate")
}

// --- Artifacts ---

func (s *PostgresStore) CreateArtifact(ctx context.Context, artifact *model.Artifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, source_id, artifact_type, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		artifact.ID, artifact.SourceID, artifact.ArtifactType, artifact.Text, artifact.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert artifact")
}

func (s *PostgresStore) GetArtifact(ctx context.Context, sourceID, artifactType string) (*model.Artifact, error) {
	var a model.Artifact
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_id, artifact_type, text, created_at FROM artifacts WHERE source_id = $1 AND artifact_type = $2`,
		sourceID, artifactType,
	).Scan(&a.ID, &a.SourceID, &a.ArtifactType, &a.Text, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan artifact")
	}
	return &a, nil
}

// --- Stats ---

func (s *PostgresStore) Stats(ctx context.Context) (*PipelineStats, error) {
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
		if err := s.pool.QueryRow(ctx, total.query).Scan(total.dest); err != nil {
			return nil, eris.Wrap(err, "postgres: count stats")
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

func (s *PostgresStore) countByGroup(ctx context.Context, query string, add func(key string, n int)) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return eris.Wrap(err, "postgres: grouped count")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return eris.Wrap(err, "postgres: scan grouped count")
		}
		add(key, n)
	}
	return eris.Wrap(rows.Err(), "postgres: grouped count iterate")
}

// --- Scan helpers ---

func pgScanText(row scannable) (*model.Text, error) {
	var t model.Text
	var tags []byte
	err := row.Scan(&t.ID, &t.CanonicalTitle, &t.Region, &tags, &t.SourceCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan text")
	}
	if err := json.Unmarshal(tags, &t.TraditionTags); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal tradition tags")
	}
	return &t, nil
}

func pgScanSource(row scannable) (*model.SourceMaterial, error) {
	var src model.SourceMaterial
	err := row.Scan(&src.ID, &src.TextID, &src.Path, &src.RawSHA256, &src.NormalizedSHA256,
		&src.WitnessGroupID, &src.DuplicateOfID, &src.DigitizationStatus,
		&src.CreatedBy, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan source")
	}
	return &src, nil
}

func pgScanGroup(row scannable) (*model.WitnessGroup, error) {
	var g model.WitnessGroup
	err := row.Scan(&g.ID, &g.CanonicalTextID, &g.Status, &g.MatchMethod, &g.MatchScore,
		&g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan witness group")
	}
	return &g, nil
}

func pgScanMember(row scannable) (*model.WitnessGroupMember, error) {
	var m model.WitnessGroupMember
	err := row.Scan(&m.GroupID, &m.SourceID, &m.Role, &m.ParserStrategy, &m.MembershipReason, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan group member")
	}
	return &m, nil
}

func pgScanPassage(row scannable) (*model.Passage, error) {
	var p model.Passage
	var notes []byte
	err := row.Scan(&p.ID, &p.TextID, &p.SourceID, &p.SpanLocator, &p.Original, &p.Normalized, &p.NormalizedLanguage,
		&p.ExtractionConf, &p.DetectedLangCode, &p.DetectedLangLabel, &p.LangConfidence,
		&p.TranslationStatus, &p.UntranslatedRatio, &p.NeedsReprocess, &p.ReprocessCount,
		&p.LastReprocessAt, &p.TranslationSource, &p.TranslationTraceID,
		&p.UsabilityScore, &p.RelevanceScore, &p.RelevanceState, &notes, &p.QualityVersion,
		&p.ReviewerState, &p.PublishState, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan passage")
	}
	if err := json.Unmarshal(notes, &p.QualityNotes); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal quality notes")
	}
	return &p, nil
}

func pgScanIngestionJob(row scannable) (*model.IngestionJob, error) {
	var j model.IngestionJob
	var errCtx []byte
	err := row.Scan(&j.ID, &j.SourceID, &j.IdempotencyKey, &j.Status, &j.AttemptCount, &j.MaxAttempts,
		&j.ParserStrategy, &j.ParserName, &j.LastError, &j.ErrorCode, &errCtx, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan ingestion job")
	}
	if err := json.Unmarshal(errCtx, &j.ErrorContext); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal error context")
	}
	return &j, nil
}

func pgScanReprocessJob(row scannable) (*model.ReprocessJob, error) {
	var j model.ReprocessJob
	var errCtx []byte
	err := row.Scan(&j.ID, &j.PassageID, &j.IdempotencyKey, &j.Status, &j.TriggerMode, &j.TriggerReason,
		&j.AttemptCount, &j.MaxAttempts, &j.UsedPDFCrossref, &j.UsedExternalReference,
		&j.LastError, &j.ErrorCode, &errCtx, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan reprocess job")
	}
	if err := json.Unmarshal(errCtx, &j.ErrorContext); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal error context")
	}
	return &j, nil
}

func pgScanTag(row scannable) (*model.RitualPatternTag, error) {
	var t model.RitualPatternTag
	var evidence []byte
	err := row.Scan(&t.ID, &t.Dimension, &t.Term, &t.Confidence, &evidence, &t.ReviewerState,
		&t.Rationale, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan pattern tag")
	}
	if err := json.Unmarshal(evidence, &t.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evidence ids")
	}
	return &t, nil
}

func pgScanLink(row scannable) (*model.CommonalityLink, error) {
	var l model.CommonalityLink
	var evidence []byte
	err := row.Scan(&l.ID, &l.SourcePassageID, &l.TargetPassageID, &l.RelationType, &l.SimilarityScore,
		&evidence, &l.ReviewerState, &l.DecisionNote, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan commonality link")
	}
	if err := json.Unmarshal(evidence, &l.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evidence ids")
	}
	return &l, nil
}

func pgScanFlag(row scannable) (*model.FlagRecord, error) {
	var f model.FlagRecord
	var evidence []byte
	err := row.Scan(&f.ID, &f.PassageID, &f.FlagType, &f.Severity, &f.Rationale,
		&evidence, &f.ReviewerState, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan flag")
	}
	if err := json.Unmarshal(evidence, &f.EvidenceIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evidence ids")
	}
	return &f, nil
}
