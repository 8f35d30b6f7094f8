package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gitpulse/gitpulse/internal/analyze"
	"github.com/gitpulse/gitpulse/internal/github"
	"github.com/gitpulse/gitpulse/internal/load"
	"github.com/gitpulse/gitpulse/internal/transform"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

// Extractor is the remote API surface the pipeline consumes.
type Extractor interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.RepositoryInfo, error)
	ListCommits(ctx context.Context, owner, repo string, opts github.CommitListOptions) ([]github.RawCommit, error)
}

// Pipeline runs the linear Extract -> Transform -> Load flow for one
// repository, optionally followed by the analysis stage. Stages run strictly
// sequentially; the store sees a single writer, so concurrent triggers are
// serialized behind a mutex.
type Pipeline struct {
	extractor      Extractor
	transformer    *transform.Transformer
	loader         *load.Loader
	analyzer       *analyze.Analyzer
	owner          string
	name           string
	lookbackMonths int

	mu sync.Mutex
}

// NewPipeline wires the four stages together. A nil analyzer skips the
// analysis stage.
func NewPipeline(extractor Extractor, transformer *transform.Transformer, loader *load.Loader, analyzer *analyze.Analyzer, owner, name string, lookbackMonths int) *Pipeline {
	return &Pipeline{
		extractor:      extractor,
		transformer:    transformer,
		loader:         loader,
		analyzer:       analyzer,
		owner:          owner,
		name:           name,
		lookbackMonths: lookbackMonths,
	}
}

// Run executes one full pipeline pass. The result is a single
// success/failure signal; record-level skips are logged and tolerated
// without flipping it.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("Starting ETL pipeline for %s/%s", p.owner, p.name)

	repoInfo, err := p.extractor.GetRepository(ctx, p.owner, p.name)
	if err != nil {
		return err
	}

	since := time.Now().AddDate(0, 0, -30*p.lookbackMonths)
	logger.Info("Fetching commits for %s/%s from the last %d months", p.owner, p.name, p.lookbackMonths)

	commits, err := p.extractor.ListCommits(ctx, p.owner, p.name, github.CommitListOptions{Since: since})
	if err != nil {
		return err
	}

	if len(commits) == 0 {
		return errors.New(
			"GITHUB_API_ERROR",
			"No commits fetched",
			fmt.Sprintf("Extraction produced no commits for %s/%s within the lookback window", p.owner, p.name),
			nil,
			errors.LevelError,
		)
	}

	batch := p.transformer.Transform(repoInfo, commits)

	result, err := p.loader.Load(ctx, batch)
	if err != nil {
		return err
	}

	logger.Info("ETL pipeline completed successfully for %s/%s (%d new commits)", p.owner, p.name, result.NewCommits)

	if p.analyzer == nil {
		return nil
	}
	return p.analyzer.RunAll(ctx)
}

// Analyze reruns only the analysis stage against the current store contents.
func (p *Pipeline) Analyze(ctx context.Context) error {
	if p.analyzer == nil {
		return errors.New(
			"ANALYSIS_ERROR",
			"Analysis stage is disabled",
			"The pipeline was constructed without an analyzer",
			nil,
			errors.LevelError,
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analyzer.RunAll(ctx)
}
