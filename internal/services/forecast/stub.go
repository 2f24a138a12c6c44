package forecast

import (
	"context"
	"sync/atomic"

	"ReviewCast/internal/domain/models"
	domsvc "ReviewCast/internal/domain/service"
	"ReviewCast/internal/services/scale"
)

// ModeStub runs an in-process forecaster.
const ModeStub = "stub"

// StubFunc produces a raw forecast for a validated request.
type StubFunc func(ctx context.Context, req models.ForecastRequest) (models.RawForecastTensor, error)

// StubForecaster serves forecasts from a function. Used for local runs and tests.
type StubForecaster struct {
	fn         StubFunc
	minHistory int
	calls      atomic.Int64
}

// NewStubForecaster wraps fn; nil fn means Persistence with the default train ratio.
func NewStubForecaster(fn StubFunc) *StubForecaster {
	if fn == nil {
		fn = Persistence(scale.DefaultTrainRatio)
	}
	return &StubForecaster{fn: fn, minHistory: DefaultMinHistory}
}

func (f *StubForecaster) Invoke(ctx context.Context, req models.ForecastRequest) (models.RawForecastTensor, error) {
	if err := validateRequest(req, f.minHistory); err != nil {
		return models.RawForecastTensor{}, err
	}
	if _, err := BuildTable(req.Series, req.Problem); err != nil {
		return models.RawForecastTensor{}, err
	}
	f.calls.Add(1)
	return f.fn(ctx, req)
}

// Calls returns how many requests reached the function.
func (f *StubForecaster) Calls() int64 { return f.calls.Load() }

func (f *StubForecaster) Status(context.Context) domsvc.ForecasterStatus {
	return domsvc.ForecasterStatus{Mode: ModeStub, Available: true}
}

// Persistence repeats the last observed target value, normalized with the
// same scaler the reconstructor fits, as a (1, horizon, 1) tensor.
func Persistence(trainRatio float64) StubFunc {
	return func(_ context.Context, req models.ForecastRequest) (models.RawForecastTensor, error) {
		level := 0.0
		if values, ok := req.Series.Column(req.Problem.Target); ok && len(values) > 0 {
			n := int(float64(len(values)) * trainRatio)
			if m, err := scale.Fit(values[:n]); err == nil {
				level = scale.Scale(m, values[len(values)-1])
			} else {
				level = values[len(values)-1]
			}
		}
		data := make([]float64, req.HorizonDays)
		for i := range data {
			data[i] = level
		}
		return models.RawForecastTensor{
			Data:  data,
			Shape: models.Batch{B: 1, T: req.HorizonDays, F: 1},
		}, nil
	}
}

var (
	_ domsvc.Forecaster     = (*StubForecaster)(nil)
	_ domsvc.StatusReporter = (*StubForecaster)(nil)
)
