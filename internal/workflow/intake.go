package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/dedupe"
	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/parser"
)

// Digitization statuses recorded on registration.
const (
	digitizationRegistered = "registered"
	digitizationDuplicate  = "duplicate"
)

// RegisterInput describes one source file to take into the corpus.
type RegisterInput struct {
	Path       string
	Title      string
	Region     string
	Traditions []string
	Actor      string
}

// Registration reports what intake produced. Source is the newly created
// record, or the already-registered one when the path was seen before.
type Registration struct {
	Text            *model.Text
	Source          *model.SourceMaterial
	Dedupe          model.DedupeStatus
	MatchedSourceID string
	AlreadyExisted  bool
}

// Register validates, fingerprints, and persists one source file, resolving
// duplicates and clustering the new witness. Re-registering a path returns
// the existing source untouched.
func (p *Pipeline) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, model.Invalid("source path is required")
	}
	ext := strings.ToLower(filepath.Ext(in.Path))
	if !parser.AllowedExtensions[ext] {
		return nil, model.Invalid("unsupported extension: %s", ext)
	}
	if err := model.ValidateRegion(in.Region); err != nil {
		return nil, err
	}
	if err := model.ValidateTraditions(in.Traditions); err != nil {
		return nil, err
	}

	existing, err := p.store.SourceByPath(ctx, in.Path)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: lookup source by path")
	}
	if existing != nil {
		text, err := p.store.GetText(ctx, existing.TextID)
		if err != nil {
			return nil, eris.Wrap(err, "workflow: load existing text")
		}
		return &Registration{Text: text, Source: existing, Dedupe: model.DedupeExactDuplicate, MatchedSourceID: existing.ID, AlreadyExisted: true}, nil
	}

	raw, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, model.Invalid("source file missing: %s", in.Path)
	}
	parsed, err := p.parser.Parse(ctx, in.Path, "")
	if err != nil {
		return nil, eris.Wrap(err, "workflow: parse for registration")
	}

	fp := dedupe.ComputeFingerprint(raw, parsed.Text, 0)
	resolution, err := dedupe.Resolve(ctx, p.store, fp)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: resolve fingerprint")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = inferTitle(in.Path)
	}

	now := time.Now().UTC()
	var text *model.Text
	if resolution.MatchedSourceID != "" {
		matched, err := p.store.GetSource(ctx, resolution.MatchedSourceID)
		if err != nil {
			return nil, eris.Wrap(err, "workflow: load matched source")
		}
		if matched != nil {
			text, err = p.store.GetText(ctx, matched.TextID)
			if err != nil {
				return nil, eris.Wrap(err, "workflow: load matched text")
			}
		}
	}
	if text == nil {
		text = &model.Text{
			ID:             model.NewID("txt"),
			CanonicalTitle: title,
			Region:         in.Region,
			TraditionTags:  in.Traditions,
			SourceCount:    1,
			CreatedBy:      in.Actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := p.store.CreateText(ctx, text); err != nil {
			return nil, eris.Wrap(err, "workflow: create text")
		}
		p.audit(ctx, in.Actor, "register_text", "text", text.ID, "", "", "", map[string]any{
			"title": text.CanonicalTitle,
		})
	}

	status := digitizationRegistered
	duplicateOf := ""
	if resolution.Status == model.DedupeExactDuplicate {
		status = digitizationDuplicate
		duplicateOf = resolution.MatchedSourceID
	}
	source := &model.SourceMaterial{
		ID:                 model.NewID("src"),
		TextID:             text.ID,
		Path:               in.Path,
		RawSHA256:          fp.RawSHA256,
		NormalizedSHA256:   fp.NormalizedSHA256,
		DuplicateOfID:      duplicateOf,
		DigitizationStatus: status,
		CreatedBy:          in.Actor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.store.CreateSource(ctx, source); err != nil {
		return nil, eris.Wrap(err, "workflow: create source")
	}
	p.audit(ctx, in.Actor, "register_source", "source", source.ID, "", "", status, map[string]any{
		"path":   source.Path,
		"dedupe": string(resolution.Status),
	})

	normalized := dedupe.NormalizeText(parsed.Text, 0)
	assignment, err := p.witness.AssignGroup(ctx, source, text.CanonicalTitle, normalized, in.Actor)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: assign witness group")
	}
	zap.L().Info("workflow: source registered",
		zap.String("source_id", source.ID),
		zap.String("text_id", text.ID),
		zap.String("dedupe", string(resolution.Status)),
		zap.String("group_id", assignment.GroupID),
		zap.String("match_method", string(assignment.Method)))

	return &Registration{
		Text:            text,
		Source:          source,
		Dedupe:          resolution.Status,
		MatchedSourceID: resolution.MatchedSourceID,
	}, nil
}

// inferTitle derives a human title from the file stem.
func inferTitle(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return "Untitled Source"
	}
	return stem
}
