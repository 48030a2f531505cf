// Package dashboard turns loaded rows into datasets and dashboard payloads.
package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/VedaVachan/COD-Mobile-insights/internal/aggregate"
	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
	"github.com/VedaVachan/COD-Mobile-insights/internal/loader"
	"github.com/VedaVachan/COD-Mobile-insights/internal/normalize"
)

// NewDataset normalizes a batch. Rows without dates count back from loadedAt.
func NewDataset(batch *loader.Batch, loadedAt time.Time) *domain.Dataset {
	loadedAt = loadedAt.UTC()
	return &domain.Dataset{
		ID:       uuid.NewString(),
		Source:   batch.Source,
		Format:   string(batch.Format),
		LoadedAt: loadedAt,
		Matches:  normalize.All(batch.Rows, loadedAt),
	}
}

// Build computes everything the front end renders for ds
func Build(ds *domain.Dataset) domain.Dashboard {
	return domain.Dashboard{
		DatasetID:      ds.ID,
		Source:         ds.Source,
		LoadedAt:       ds.LoadedAt,
		Summary:        aggregate.Summarize(ds.Matches),
		Maps:           aggregate.ByMap(ds.Matches),
		Modes:          aggregate.ByMode(ds.Matches),
		Timeline:       aggregate.Timeline(ds.Matches),
		Trends:         aggregate.Trends(ds.Matches),
		KDDistribution: aggregate.KDDistribution(ds.Matches),
	}
}
