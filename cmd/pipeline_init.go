package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/three-lanterns/curator/internal/extract"
	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/parser"
	"github.com/three-lanterns/curator/internal/proposal"
	"github.com/three-lanterns/curator/internal/quality"
	"github.com/three-lanterns/curator/internal/store"
	"github.com/three-lanterns/curator/internal/translate"
	"github.com/three-lanterns/curator/internal/tuning"
	"github.com/three-lanterns/curator/internal/witness"
	"github.com/three-lanterns/curator/internal/workflow"
	"github.com/three-lanterns/curator/pkg/freeref"
	"github.com/three-lanterns/curator/pkg/llm"
)

// pipelineEnv holds the initialized store and pipeline shared by the
// register/worker/reprocess commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *workflow.Pipeline
	Witness  *witness.Engine
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "curator.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the store for commands that only need
// persistence. Callers should defer st.Close().
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline sets up the store, scorer, translator, and proposal engine,
// and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := tuning.LoadProfile(cfg.Tuning.ProfilePath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	lexicon := quality.BuildOntologyLexicon(model.OntologyDimensions, model.TraditionVocabulary)
	scoreCfg := tuning.BuildQualityConfig(profile, quality.DefaultConfig(lexicon))
	scorer := quality.NewScorer(scoreCfg, lexicon)

	segSettings := tuning.BuildSegmentation(profile)
	seg := extract.Segmentation{
		MinPassageLength: segSettings.MinPassageLength,
		MaxPassages:      segSettings.MaxPassagesPerSource,
	}

	var translator translate.Translator
	var generator proposal.Generator

	switch cfg.AI.Provider {
	case "anthropic":
		client := llm.NewClient(cfg.Anthropic.Key, llm.Options{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			CallTimeout:       time.Duration(cfg.Anthropic.CallTimeoutSecs) * time.Second,
			RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
		})
		translator = translate.NewLLMTranslator(client, st, cfg.Anthropic.Model, cfg.Anthropic.PromptVersion)
		generator = proposal.NewLLMGenerator(client, cfg.Anthropic.Model)
		zap.L().Info("anthropic provider enabled", zap.String("model", cfg.Anthropic.Model))
	default:
		translator = translate.NewMockTranslator(st)
		generator = proposal.NewHeuristicGenerator()
	}

	p := parser.New(cfg.Parser.PdfToTextPath)
	we := witness.NewEngine(st, func(ctx context.Context, path string) (string, error) {
		res, err := p.Parse(ctx, path, "")
		if err != nil {
			return "", err
		}
		return res.Text, nil
	})

	pipeline := workflow.NewPipeline(
		st,
		p,
		we,
		extract.NewBuilder(st, scorer, translator),
		translator,
		proposal.NewEngine(st, generator),
		freeref.New(time.Duration(cfg.Reference.TimeoutSecs)*time.Second),
		workflow.Options{
			Segmentation: seg,
			MaxAttempts:  cfg.Worker.MaxAttempts,
			AIEnabled:    cfg.AI.Enabled,
		},
	)

	return &pipelineEnv{Store: st, Pipeline: pipeline, Witness: we}, nil
}
