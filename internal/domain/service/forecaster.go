package service

import (
	"context"

	"ReviewCast/internal/domain/models"
)

// Forecaster runs the external sequence model for one series.
// Implementations return errs.ForecastFailed, errs.ForecastTimeout,
// errs.ResultNotFound or errs.ResultAmbiguous on collaborator failures.
type Forecaster interface {
	Invoke(ctx context.Context, req models.ForecastRequest) (models.RawForecastTensor, error)
}

// ForecasterStatus reports whether the collaborator looks usable.
type ForecasterStatus struct {
	Mode      string            `json:"mode"`
	Available bool              `json:"available"`
	Checks    map[string]bool   `json:"checks,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// StatusReporter is implemented by forecasters that can self-check.
type StatusReporter interface {
	Status(ctx context.Context) ForecasterStatus
}
