package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"lidoDigest/internal/dune"
	"lidoDigest/internal/llm"
	"lidoDigest/internal/model"
	"lidoDigest/internal/storage"
)

// DateLayout is the date format used on the command line, in prompts and in output paths.
const DateLayout = "2006-01-02"

const threadFileName = "thread.md"

// Source produces the datasets for one digest.
type Source interface {
	Load(ctx context.Context, params dune.Params) (model.Datasets, error)
}

// Formatter turns datasets into metric summaries.
type Formatter interface {
	FormatAll(datasets model.Datasets) (map[string]string, error)
}

// Grapher renders charts for datasets and returns the written files.
type Grapher interface {
	ProcessAll(datasets model.Datasets) ([]string, error)
}

// Deliverer sends the thread and charts downstream.
type Deliverer interface {
	Enabled() bool
	Deliver(ctx context.Context, threadPath string, imagePaths []string) error
}

// Config holds output settings.
type Config struct {
	ThreadsDir string
}

// Pipeline runs the digest stages strictly in sequence.
type Pipeline struct {
	cfg       Config
	source    Source
	formatter Formatter
	composer  llm.Composer
	grapher   Grapher
	deliverer Deliverer
	archives  []storage.Archive
	logger    *zap.Logger
}

// Deps are the stage implementations. Grapher, Deliverer and Archives are optional.
type Deps struct {
	Source    Source
	Formatter Formatter
	Composer  llm.Composer
	Grapher   Grapher
	Deliverer Deliverer
	Archives  []storage.Archive
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ThreadsDir == "" {
		cfg.ThreadsDir = "threads"
	}
	return &Pipeline{
		cfg:       cfg,
		source:    deps.Source,
		formatter: deps.Formatter,
		composer:  deps.Composer,
		grapher:   deps.Grapher,
		deliverer: deps.Deliverer,
		archives:  deps.Archives,
		logger:    logger,
	}
}

// Run executes load, format, compose, write, graph, deliver and archive.
func (p *Pipeline) Run(ctx context.Context, params dune.Params) (*model.DigestRun, error) {
	if p.source == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if p.formatter == nil {
		return nil, fmt.Errorf("formatter is nil")
	}
	if p.composer == nil {
		return nil, fmt.Errorf("composer is nil")
	}

	started := time.Now()
	startDate := params.StartDate.Format(DateLayout)
	endDate := params.EndDate.Format(DateLayout)
	log := p.logger.With(zap.String("start_date", startDate), zap.String("end_date", endDate))

	run := &model.DigestRun{
		ID:        xid.New().String(),
		StartDate: startDate,
		EndDate:   endDate,
		SolStart:  params.SolStart,
		SolEnd:    params.SolEnd,
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("digest start")

	datasets, err := p.source.Load(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("load datasets: %w", err)
	}
	log.Info("datasets loaded", zap.Int("datasets", len(datasets)))

	summaries, err := p.formatter.FormatAll(datasets)
	if err != nil {
		return nil, err
	}
	run.Summaries = summaries
	log.Info("datasets formatted", zap.Int("summaries", len(summaries)))

	thread, err := p.composer.WriteThread(ctx, summaries, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("write thread: %w", err)
	}
	run.Thread = thread

	threadPath, err := p.writeThread(endDate, thread)
	if err != nil {
		return nil, err
	}
	run.ThreadPath = threadPath
	log.Info("thread written", zap.String("path", threadPath))

	if p.grapher != nil {
		charts, err := p.grapher.ProcessAll(datasets)
		if err != nil {
			return nil, fmt.Errorf("graph datasets: %w", err)
		}
		run.Charts = charts
		log.Info("charts rendered", zap.Int("charts", len(charts)))
	}

	if p.deliverer != nil && p.deliverer.Enabled() {
		if err := p.deliverer.Deliver(ctx, threadPath, run.Charts); err != nil {
			return nil, fmt.Errorf("deliver digest: %w", err)
		}
		run.Delivered = true
	} else {
		log.Info("webhook not configured, skipping delivery")
	}

	run.CreatedAt = time.Now().UTC()
	for _, archive := range p.archives {
		if err := archive.PutRun(ctx, *run); err != nil {
			return nil, fmt.Errorf("archive run: %w", err)
		}
	}

	log.Info("digest complete",
		zap.Int("charts", len(run.Charts)),
		zap.Bool("delivered", run.Delivered),
		zap.Duration("elapsed", time.Since(started)),
	)
	return run, nil
}

func (p *Pipeline) writeThread(endDate, thread string) (string, error) {
	dir := filepath.Join(p.cfg.ThreadsDir, endDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create thread dir: %w", err)
	}
	path := filepath.Join(dir, threadFileName)
	if err := os.WriteFile(path, []byte(thread), 0o644); err != nil {
		return "", fmt.Errorf("write thread file: %w", err)
	}
	return path, nil
}
