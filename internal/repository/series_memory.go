package repository

import (
	"context"
	"sort"
	"sync"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
)

// MemorySeriesStore keeps the latest series and forecast per product in process.
type MemorySeriesStore struct {
	mu        sync.RWMutex
	series    map[string]models.DailySeries
	forecasts map[string]models.ReconstructedForecast
}

// NewMemorySeriesStore creates an empty store.
func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{
		series:    make(map[string]models.DailySeries),
		forecasts: make(map[string]models.ReconstructedForecast),
	}
}

func (s *MemorySeriesStore) SaveSeries(_ context.Context, ds models.DailySeries) error {
	cp := ds
	cp.Points = append([]models.DailyPoint(nil), ds.Points...)
	s.mu.Lock()
	s.series[ds.ProductID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemorySeriesStore) LatestSeries(_ context.Context, productID string) (models.DailySeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.series[productID]
	if !ok {
		return models.DailySeries{}, errs.NotFound("no series stored for product %q", productID)
	}
	ds.Points = append([]models.DailyPoint(nil), ds.Points...)
	return ds, nil
}

func (s *MemorySeriesStore) SaveForecast(_ context.Context, f models.ReconstructedForecast) error {
	cp := f
	cp.Points = append([]models.ForecastPoint(nil), f.Points...)
	s.mu.Lock()
	s.forecasts[f.ProductID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemorySeriesStore) LatestForecast(_ context.Context, productID string) (models.ReconstructedForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forecasts[productID]
	if !ok {
		return models.ReconstructedForecast{}, errs.NotFound("no forecast stored for product %q", productID)
	}
	f.Points = append([]models.ForecastPoint(nil), f.Points...)
	return f, nil
}

func (s *MemorySeriesStore) ListProducts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ domrepo.SeriesStore = (*MemorySeriesStore)(nil)
