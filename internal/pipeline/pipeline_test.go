package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lidoDigest/internal/dune"
	"lidoDigest/internal/format"
	"lidoDigest/internal/model"
	"lidoDigest/internal/storage"
)

type staticSource struct {
	datasets model.Datasets
	err      error
}

func (s staticSource) Load(context.Context, dune.Params) (model.Datasets, error) {
	return s.datasets, s.err
}

type fakeComposer struct {
	summaries map[string]string
	start     string
	end       string
}

func (c *fakeComposer) WriteThread(_ context.Context, summaries map[string]string, startDate, endDate string) (string, error) {
	c.summaries = summaries
	c.start = startDate
	c.end = endDate
	return "1/ Lido weekly digest " + startDate + " - " + endDate, nil
}

type fakeGrapher struct {
	charts []string
}

func (g fakeGrapher) ProcessAll(model.Datasets) ([]string, error) {
	return g.charts, nil
}

type fakeDeliverer struct {
	enabled    bool
	threadPath string
	images     []string
}

func (d *fakeDeliverer) Enabled() bool { return d.enabled }

func (d *fakeDeliverer) Deliver(_ context.Context, threadPath string, imagePaths []string) error {
	d.threadPath = threadPath
	d.images = imagePaths
	return nil
}

func testParams() dune.Params {
	return dune.Params{
		StartDate: time.Date(2023, 7, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 7, 31, 0, 0, 0, 0, time.UTC),
		SolStart:  1,
		SolEnd:    2,
	}
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "runs.jsonl")
	composer := &fakeComposer{}
	deliverer := &fakeDeliverer{enabled: true}

	p := New(Config{ThreadsDir: filepath.Join(dir, "threads")}, Deps{
		Source: staticSource{datasets: model.Datasets{
			"stEthToEth":  {{"weight_avg_price": 0.9995}},
			"lidoRevenue": {{"x": 1.0}},
		}},
		Formatter: format.DefaultRegistry(),
		Composer:  composer,
		Grapher:   fakeGrapher{charts: []string{"graphs/2023-07-31/tvl.png"}},
		Deliverer: deliverer,
		Archives:  []storage.Archive{storage.NewJsonlArchive(archivePath)},
	}, nil)

	run, err := p.Run(context.Background(), testParams())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"stEthToEth": "stETH/ETH price: 0.999500"}, composer.summaries)
	assert.Equal(t, "2023-07-24", composer.start)
	assert.Equal(t, "2023-07-31", composer.end)

	wantPath := filepath.Join(dir, "threads", "2023-07-31", "thread.md")
	assert.Equal(t, wantPath, run.ThreadPath)
	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, "1/ Lido weekly digest 2023-07-24 - 2023-07-31", string(data))

	assert.Equal(t, wantPath, deliverer.threadPath)
	assert.Equal(t, []string{"graphs/2023-07-31/tvl.png"}, deliverer.images)
	assert.True(t, run.Delivered)
	assert.NotEmpty(t, run.ID)

	runs, err := storage.ReadRuns(archivePath)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestPipelineSkipsDisabledDelivery(t *testing.T) {
	deliverer := &fakeDeliverer{}
	p := New(Config{ThreadsDir: t.TempDir()}, Deps{
		Source:    staticSource{datasets: model.Datasets{}},
		Formatter: format.DefaultRegistry(),
		Composer:  &fakeComposer{},
		Deliverer: deliverer,
	}, nil)

	run, err := p.Run(context.Background(), testParams())
	require.NoError(t, err)
	assert.False(t, run.Delivered)
	assert.Empty(t, deliverer.threadPath)
}

func TestPipelineAbortsOnFormatError(t *testing.T) {
	threads := t.TempDir()
	composer := &fakeComposer{}
	p := New(Config{ThreadsDir: threads}, Deps{
		Source:    staticSource{datasets: model.Datasets{"tvl": {{"chain": "Ethereum"}}}},
		Formatter: format.DefaultRegistry(),
		Composer:  composer,
	}, nil)

	_, err := p.Run(context.Background(), testParams())
	require.ErrorIs(t, err, format.ErrRowNotFound)
	assert.Nil(t, composer.summaries)

	_, statErr := os.Stat(filepath.Join(threads, "2023-07-31"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineLoadError(t *testing.T) {
	p := New(Config{}, Deps{
		Source:    staticSource{err: errors.New("dune down")},
		Formatter: format.DefaultRegistry(),
		Composer:  &fakeComposer{},
	}, nil)

	_, err := p.Run(context.Background(), testParams())
	assert.ErrorContains(t, err, "load datasets: dune down")
}

func TestSnapshotSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.json")
	require.NoError(t, model.WriteSnapshot(path, model.Datasets{"stETHApr": {{"stakingAPR_ma_7": 0.04}}}))

	datasets, err := SnapshotSource{Path: path}.Load(context.Background(), dune.Params{})
	require.NoError(t, err)
	require.Contains(t, datasets, "stETHApr")
}
