// Package report aggregates run summaries into a coverage report and
// renders it as HTML and JSON.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrArtifactIO is returned for artifacts that are missing or unparseable.
var ErrArtifactIO = errors.New("artifact unreadable")

const loadWorkers = 4

// ReadArtifact reads a single run summary, wrapping failures in ErrArtifactIO.
func ReadArtifact(path string) (*results.RunSummary, error) {
	summary, err := results.ReadArtifact(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactIO, path, err)
	}

	return summary, nil
}

// LoadArtifacts reads run summaries in parallel. Results keep the order of
// paths; an unreadable artifact is logged and skipped. The only error
// returned is context cancellation.
func LoadArtifacts(ctx context.Context, log logrus.FieldLogger, paths []string) ([]*results.RunSummary, error) {
	log = log.WithField("component", "report")

	loaded := make([]*results.RunSummary, len(paths))
	g, gctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, loadWorkers)
	for i, path := range paths {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			if err := gctx.Err(); err != nil {
				return err
			}

			summary, err := ReadArtifact(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Warn("Skipping artifact")

				return nil
			}

			loaded[i] = summary

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]*results.RunSummary, 0, len(loaded))
	for _, s := range loaded {
		if s != nil {
			summaries = append(summaries, s)
		}
	}

	log.WithFields(logrus.Fields{
		"requested": len(paths),
		"loaded":    len(summaries),
	}).Debug("Loaded artifacts")

	return summaries, nil
}
