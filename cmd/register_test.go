package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/three-lanterns/curator/internal/config"
	"github.com/three-lanterns/curator/internal/model"
	"github.com/three-lanterns/curator/internal/store"
)

// testConfig points the global cfg at a throwaway sqlite store with the
// mock AI provider.
func testConfig(t *testing.T) {
	t.Helper()
	prev := cfg

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "curator.db")
	cfg.AI.Enabled = true
	cfg.AI.Provider = "mock"
	cfg.Worker.MaxAttempts = 3
	cfg.Worker.PollIntervalSecs = 1
	cfg.Reference.TimeoutSecs = 1

	t.Cleanup(func() { cfg = prev })
}

func TestInitPipeline_MockProvider(t *testing.T) {
	testConfig(t)

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Pipeline)
	require.NotNil(t, env.Witness)
}

func TestRegisterPaths_RegistersAndEnqueues(t *testing.T) {
	testConfig(t)

	dir := t.TempDir()
	content := strings.Repeat("invocation offering dawn ritual text ", 8)
	pathA := filepath.Join(dir, "hymn_a.txt")
	pathB := filepath.Join(dir, "hymn_b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte(content+"alpha"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte(content+"beta"), 0o644))

	registerRegion = "europe_mediterranean"
	registerTraditions = []string{"greek_mystery"}
	registerTitle = ""
	registerActor = "tester"
	registerEnqueue = true
	registerConcurrency = 2

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	ctx := context.Background()
	require.NoError(t, registerPaths(ctx, env.Pipeline, []string{pathA, pathB}))

	for _, path := range []string{pathA, pathB} {
		source, err := env.Store.SourceByPath(ctx, path)
		require.NoError(t, err)
		require.NotNil(t, source, "source for %s", path)
	}

	jobs, err := env.Store.ListIngestionJobs(ctx, store.JobFilter{Status: model.JobPending, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestRegisterPaths_ReportsFailures(t *testing.T) {
	testConfig(t)

	registerRegion = "europe_mediterranean"
	registerTraditions = nil
	registerTitle = ""
	registerActor = "tester"
	registerEnqueue = false
	registerConcurrency = 2

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	missing := filepath.Join(t.TempDir(), "nowhere.txt")
	err = registerPaths(context.Background(), env.Pipeline, []string{missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 registrations failed")
}
