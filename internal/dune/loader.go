package dune

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"lidoDigest/internal/model"
)

const paramDateLayout = "2006-01-02 15:04:05"

// Params are the external inputs shared by every digest query.
type Params struct {
	StartDate time.Time
	EndDate   time.Time
	SolStart  float64
	SolEnd    float64
}

// QueryParameters renders params in the form Dune expects.
func (p Params) QueryParameters() map[string]string {
	return map[string]string{
		"start_date":         p.StartDate.Format(paramDateLayout),
		"end_date":           p.EndDate.Format(paramDateLayout),
		"sol_start_deposits": strconv.FormatFloat(p.SolStart, 'f', -1, 64),
		"sol_end_deposits":   strconv.FormatFloat(p.SolEnd, 'f', -1, 64),
	}
}

// LoaderConfig controls query execution polling.
type LoaderConfig struct {
	Queries      map[string]int
	PollInterval time.Duration
	Timeout      time.Duration
}

// Loader runs the configured queries and collects their results by metric name.
type Loader struct {
	cfg    LoaderConfig
	client *Client
	logger *zap.Logger
}

func NewLoader(cfg LoaderConfig, client *Client, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Loader{cfg: cfg, client: client, logger: logger}
}

// Load executes every query in metric name order and returns their datasets.
func (l *Loader) Load(ctx context.Context, params Params) (model.Datasets, error) {
	if l.client == nil {
		return nil, fmt.Errorf("dune client is nil")
	}
	if len(l.cfg.Queries) == 0 {
		return nil, fmt.Errorf("no queries configured")
	}

	names := make([]string, 0, len(l.cfg.Queries))
	for name := range l.cfg.Queries {
		names = append(names, name)
	}
	sort.Strings(names)

	queryParams := params.QueryParameters()
	out := make(model.Datasets, len(names))
	for _, name := range names {
		queryID := l.cfg.Queries[name]
		started := time.Now()

		ds, err := l.runQuery(ctx, queryID, queryParams)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		out[name] = ds

		l.logger.Info("query loaded",
			zap.String("metric", name),
			zap.Int("query_id", queryID),
			zap.Int("rows", len(ds)),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
	return out, nil
}

func (l *Loader) runQuery(ctx context.Context, queryID int, params map[string]string) (model.Dataset, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	executionID, err := l.client.Execute(ctx, queryID, params)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("query submitted", zap.Int("query_id", queryID), zap.String("execution_id", executionID))

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		exec, err := l.client.Status(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if exec.Finished() {
			if exec.State != StateCompleted {
				return nil, fmt.Errorf("execution %s ended in %s", executionID, exec.State)
			}
			return l.client.Results(ctx, executionID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
