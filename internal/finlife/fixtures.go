package finlife

import (
	"context"
	"fmt"
	"os"
	"time"

	apperrors "github.com/finmate/finmate/common/errors"
	"gopkg.in/yaml.v3"
)

// ReadFixtures parses a YAML file of batches keyed by product kind
func ReadFixtures(path string) (map[string]*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	batches := make(map[string]*Batch)
	if err := yaml.Unmarshal(data, &batches); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	for kind := range batches {
		if _, ok := endpoints[kind]; !ok {
			return nil, apperrors.New(apperrors.ErrInvalid, "unknown product kind %q in fixtures", kind)
		}
	}
	return batches, nil
}

// LoadFixtures stores a fixtures file as if it had been fetched from the API
func (s *Syncer) LoadFixtures(ctx context.Context, path string) (map[string]*Report, error) {
	batches, err := ReadFixtures(path)
	if err != nil {
		return nil, err
	}

	reports := make(map[string]*Report, len(batches))
	for _, kind := range ValidKinds {
		batch, ok := batches[kind]
		if !ok || batch == nil {
			continue
		}
		start := time.Now()
		report, err := s.Apply(ctx, kind, batch)
		report.Duration = time.Since(start)
		s.finish(ctx, report, err)
		if err != nil {
			return reports, err
		}
		reports[kind] = report
	}
	return reports, nil
}

// FixtureFetcher serves batches from a fixtures file instead of the API
type FixtureFetcher struct {
	batches map[string]*Batch
}

// NewFixtureFetcher reads path once and serves it for every FetchAll
func NewFixtureFetcher(path string) (*FixtureFetcher, error) {
	batches, err := ReadFixtures(path)
	if err != nil {
		return nil, err
	}
	return &FixtureFetcher{batches: batches}, nil
}

// FetchAll returns the fixture batch, empty when the kind is absent
func (f *FixtureFetcher) FetchAll(ctx context.Context, kind string) (*Batch, error) {
	if batch, ok := f.batches[kind]; ok && batch != nil {
		return batch, nil
	}
	return &Batch{}, nil
}
