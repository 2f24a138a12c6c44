package scale

import (
	"math"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
)

// DefaultTrainRatio is the share of history the scaler is refitted on.
const DefaultTrainRatio = 0.7

// Reconstructor converts raw model output back into real-world units.
type Reconstructor struct {
	trainRatio float64
	now        func() time.Time
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithTrainRatio overrides the training share, ignored outside (0,1].
func WithTrainRatio(r float64) Option {
	return func(rc *Reconstructor) {
		if r > 0 && r <= 1 {
			rc.trainRatio = r
		}
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(rc *Reconstructor) { rc.now = now }
}

// NewReconstructor builds a Reconstructor.
func NewReconstructor(opts ...Option) *Reconstructor {
	rc := &Reconstructor{trainRatio: DefaultTrainRatio, now: time.Now}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// TrainRatio returns the configured training share.
func (rc *Reconstructor) TrainRatio() float64 { return rc.trainRatio }

// Reconstruct inverts the model's normalization for one forecast. Scaling
// failures do not fail the call: the raw values are passed through, clamped to
// be non-negative, and the result is flagged as degraded.
func (rc *Reconstructor) Reconstruct(raw models.RawForecastTensor, historical models.DailySeries, target string, horizon int) (models.ReconstructedForecast, error) {
	if historical.Len() == 0 {
		return models.ReconstructedForecast{}, errs.MissingDateColumn("historical series has no dates")
	}
	if horizon <= 0 {
		return models.ReconstructedForecast{}, errs.Invalid("horizon must be positive, got %d", horizon)
	}
	channel, err := SelectChannel(raw)
	if err != nil {
		return models.ReconstructedForecast{}, err
	}

	out := models.ReconstructedForecast{
		ProductID:    historical.ProductID,
		TargetField:  target,
		InvocationID: raw.InvocationID,
		CreatedAt:    rc.now().UTC(),
	}

	values, ok := historical.Column(target)
	if !ok {
		out.TransformUsed = models.TransformNone
		out.Degraded = true
		out.DegradedReason = models.DegradedTargetAbsent
		out.Points = datePoints(historical.LastDate(), passThrough(channel), horizon)
		return out, nil
	}

	numTrain := int(float64(len(values)) * rc.trainRatio)
	model, err := Fit(values[:numTrain])
	if err != nil {
		out.TransformUsed = models.TransformNone
		out.Degraded = true
		out.DegradedReason = models.DegradedFitFailed
		out.Points = datePoints(historical.LastDate(), passThrough(channel), horizon)
		return out, nil
	}

	restored := make([]float64, len(channel))
	for i, v := range channel {
		x := Unscale(model, v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			out.TransformUsed = models.TransformNone
			out.Degraded = true
			out.DegradedReason = models.DegradedNonFinite
			out.Points = datePoints(historical.LastDate(), passThrough(channel), horizon)
			return out, nil
		}
		x = math.Max(x, 0)
		if models.IsCountTarget(target) {
			x = math.Round(x)
		}
		restored[i] = x
	}

	out.TransformUsed = model.Transform
	out.Scale = &model
	out.Points = datePoints(historical.LastDate(), restored, horizon)
	return out, nil
}

// SelectChannel extracts the target channel of a raw tensor: batch 0 and the
// feature index for rank 3, the feature index for rank 2, everything for rank 1.
func SelectChannel(raw models.RawForecastTensor) ([]float64, error) {
	if raw.Shape == nil {
		return nil, errs.Invalid("forecast tensor has no shape")
	}
	if n := models.ShapeSize(raw.Shape); n != len(raw.Data) {
		return nil, errs.Invalid("forecast tensor shape %v holds %d values, got %d", raw.Shape.Dims(), n, len(raw.Data))
	}
	fi := raw.FeatureIndex

	switch s := raw.Shape.(type) {
	case models.Batch:
		if s.B == 0 {
			return []float64{}, nil
		}
		if fi < 0 || fi >= s.F {
			return nil, errs.Invalid("feature index %d out of range for %d features", fi, s.F)
		}
		out := make([]float64, s.T)
		for t := 0; t < s.T; t++ {
			out[t] = raw.Data[t*s.F+fi]
		}
		return out, nil
	case models.TimeFeature:
		if fi < 0 || fi >= s.F {
			return nil, errs.Invalid("feature index %d out of range for %d features", fi, s.F)
		}
		out := make([]float64, s.T)
		for t := 0; t < s.T; t++ {
			out[t] = raw.Data[t*s.F+fi]
		}
		return out, nil
	case models.Flat:
		out := make([]float64, s.T)
		copy(out, raw.Data)
		return out, nil
	default:
		return nil, errs.Invalid("unsupported tensor rank %d", raw.Shape.Rank())
	}
}

// passThrough clamps raw values to be non-negative. Non-finite values
// become zero.
func passThrough(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		out[i] = v
	}
	return out
}

func datePoints(last time.Time, values []float64, horizon int) []models.ForecastPoint {
	n := horizon
	if len(values) < n {
		n = len(values)
	}
	points := make([]models.ForecastPoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.ForecastPoint{Date: last.AddDate(0, 0, i+1), Value: values[i]}
	}
	return points
}
