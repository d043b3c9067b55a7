package extractor

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrgeo/pkg/checkpoint"
	"flickrgeo/pkg/config"
	"flickrgeo/pkg/errors"
	"flickrgeo/pkg/export"
	"flickrgeo/pkg/flickr"
	"flickrgeo/pkg/geo"
	"flickrgeo/pkg/logger"
)

func testRunConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Search.BBox = "0,0,10,10"
	cfg.Search.NumSeg = 2
	cfg.Search.StartYear = 2015
	cfg.Search.EndYear = 2015
	cfg.Output.RunName = "testrun"
	return cfg
}

func newTestExtractor(t *testing.T, cfg *config.Config, client searchClient) *Extractor {
	t.Helper()

	writer, err := export.NewWriter(t.TempDir(), cfg.Output.OverwriteExisting, logger.NewNopLogger())
	require.NoError(t, err)
	store, err := checkpoint.NewStore(t.TempDir())
	require.NoError(t, err)

	return New(cfg, client, writer, store, logger.NewNopLogger())
}

// quadrantPhotos places one photo in each cell of the 2x2 grid over
// (0,0,10,10)
func quadrantPhotos() []flickr.Photo {
	taken := time.Date(2015, time.June, 1, 12, 0, 0, 0, time.UTC)
	return []flickr.Photo{
		makePhoto("sw", 2.5, 2.5, taken),
		makePhoto("se", 2.5, 7.5, taken.Add(time.Hour)),
		makePhoto("nw", 7.5, 2.5, taken.Add(2*time.Hour)),
		makePhoto("ne", 7.5, 7.5, taken.Add(3*time.Hour)),
	}
}

func TestRunProducesMergedExport(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	summary, err := ext.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "testrun", summary.RunName)
	assert.Equal(t, 4, summary.Cells)
	assert.Equal(t, 0, summary.SkippedCells)
	assert.Empty(t, summary.FailedCells)
	assert.Equal(t, 4, summary.Records)
	assert.True(t, strings.HasSuffix(summary.OutputPath, "testrun.csv"))

	// Export exists, parts and checkpoint are gone
	_, err = os.Stat(summary.OutputPath)
	assert.NoError(t, err)

	parts, err := ext.writer.ListParts("testrun")
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.False(t, ext.checkpoints.Exists("testrun"))
}

func TestRunZipsOutput(t *testing.T) {
	cfg := testRunConfig()
	cfg.Output.Zip = true
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	summary, err := ext.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(summary.OutputPath, "testrun.zip"))

	_, err = os.Stat(summary.OutputPath)
	assert.NoError(t, err)
}

func TestRunReportsProgress(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	var calls []int
	ext.OnProgress = func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	}

	_, err := ext.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestRunKeepsCheckpointOnCellFailure(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())

	// Fail one of the four cells
	parent, err := geo.Parse(cfg.Search.BBox)
	require.NoError(t, err)
	cells, err := parent.Divide(2)
	require.NoError(t, err)
	client.failBBoxes[cells[1].String()] = errors.ServerError("down", 503)

	ext := newTestExtractor(t, cfg, client)

	summary, err := ext.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--resume")
	assert.Equal(t, []int{1}, summary.FailedCells)

	// Checkpoint survives with the successful cells marked
	require.True(t, ext.checkpoints.Exists("testrun"))
	state, err := ext.checkpoints.Load("testrun")
	require.NoError(t, err)
	assert.Len(t, state.CompletedCells, 3)
	assert.False(t, state.IsCellDone(1))
}

func TestRunResumeSkipsCompletedCells(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())

	parent, err := geo.Parse(cfg.Search.BBox)
	require.NoError(t, err)
	cells, err := parent.Divide(2)
	require.NoError(t, err)
	client.failBBoxes[cells[1].String()] = errors.ServerError("down", 503)

	ext := newTestExtractor(t, cfg, client)
	_, err = ext.Run(context.Background())
	require.Error(t, err)

	// Heal the failure and resume
	delete(client.failBBoxes, cells[1].String())
	cfg.Extract.Resume = true

	summary, err := ext.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SkippedCells)
	assert.Equal(t, 4, summary.Records)
	assert.False(t, ext.checkpoints.Exists("testrun"))
}

func TestRunResumeRejectsChangedParameters(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	state := checkpoint.NewState("testrun", cfg.Search.BBox, 8, 2015, 2015)
	require.NoError(t, ext.checkpoints.Save(state))

	cfg.Extract.Resume = true
	_, err := ext.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRunWithoutResumeDiscardsOldCheckpoint(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	stale := checkpoint.NewState("testrun", "9,9,99,99", 8, 1999, 2000)
	require.NoError(t, ext.checkpoints.Save(stale))

	summary, err := ext.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SkippedCells)
	assert.Equal(t, 4, summary.Records)
}

func TestRunValidatesInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing run name", func(c *config.Config) { c.Output.RunName = "" }},
		{"bad bbox", func(c *config.Config) { c.Search.BBox = "not-a-bbox" }},
		{"zero num_seg", func(c *config.Config) { c.Search.NumSeg = 0 }},
		{"inverted years", func(c *config.Config) { c.Search.StartYear, c.Search.EndYear = 2020, 2010 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRunConfig()
			tt.mutate(cfg)
			ext := newTestExtractor(t, cfg, newFakeClient(4000, nil))

			_, err := ext.Run(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestCleanRun(t *testing.T) {
	cfg := testRunConfig()
	client := newFakeClient(4000, quadrantPhotos())
	ext := newTestExtractor(t, cfg, client)

	// Leave artifacts behind by failing a cell
	parent, _ := geo.Parse(cfg.Search.BBox)
	cells, _ := parent.Divide(2)
	client.failBBoxes[cells[0].String()] = errors.ServerError("down", 503)
	_, err := ext.Run(context.Background())
	require.Error(t, err)

	require.NoError(t, ext.CleanRun("testrun"))

	parts, err := ext.writer.ListParts("testrun")
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.False(t, ext.checkpoints.Exists("testrun"))
}
