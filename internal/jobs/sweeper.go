// internal/jobs/sweeper.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"balance-ledger/internal/artifact"
	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

// DefaultOrphanAge is how old an unreferenced upload must be before it is removed.
// Uploads younger than this may belong to a cashout that is still being recorded.
const DefaultOrphanAge = time.Hour

// ArtifactFiles lists and deletes stored uploads.
type ArtifactFiles interface {
	List(ctx context.Context) ([]artifact.File, error)
	Delete(ctx context.Context, publicPath string) error
}

// Sweeper removes cashout uploads that no request references.
type Sweeper struct {
	files    ArtifactFiles
	requests repository.RequestRepository
	minAge   time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper. A non-positive minAge uses DefaultOrphanAge.
func NewSweeper(files ArtifactFiles, requests repository.RequestRepository, minAge time.Duration, logger *logrus.Logger) *Sweeper {
	if minAge <= 0 {
		minAge = DefaultOrphanAge
	}
	return &Sweeper{
		files:    files,
		requests: requests,
		minAge:   minAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep deletes orphaned uploads and reports how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	if len(files) == 0 {
		return 0, nil
	}

	cashouts, err := s.requests.ListRequests(ctx, repository.RequestFilter{Kind: domain.RequestKindCashout})
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	referenced := make(map[string]struct{}, len(cashouts))
	for _, r := range cashouts {
		if r.ScreenshotPath != "" {
			referenced[r.ScreenshotPath] = struct{}{}
		}
	}

	cutoff := s.now().Add(-s.minAge)
	removed := 0
	for _, f := range files {
		if _, ok := referenced[f.PublicPath]; ok || f.ModTime.After(cutoff) {
			continue
		}
		if err := s.files.Delete(ctx, f.PublicPath); err != nil {
			s.logger.WithError(err).WithField("path", f.PublicPath).Warn("Failed to remove orphaned upload")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Orphaned uploads removed")
	}
	return removed, nil
}
