package scale

import (
	"errors"
	"fmt"
	"math"

	"ReviewCast/internal/domain/models"
)

// ErrFit is returned when a scaler cannot be fitted to the training slice.
var ErrFit = errors.New("scale: fit failed")

// ChooseTransform picks log1p when the slice contains a zero, log otherwise.
func ChooseTransform(values []float64) models.Transform {
	for _, v := range values {
		if v == 0 {
			return models.TransformLog1p
		}
	}
	return models.TransformLog
}

// Forward applies the variance-stabilizing transform to one value.
func Forward(t models.Transform, v float64) float64 {
	switch t {
	case models.TransformLog1p:
		return math.Log1p(v)
	case models.TransformLog:
		return math.Log(v)
	default:
		return v
	}
}

// Inverse undoes Forward.
func Inverse(t models.Transform, v float64) float64 {
	switch t {
	case models.TransformLog1p:
		return math.Expm1(v)
	case models.TransformLog:
		return math.Exp(v)
	default:
		return v
	}
}

// Fit chooses the transform for the training slice and fits a [0,1] min-max
// scaler on the transformed values.
func Fit(train []float64) (models.ScaleModel, error) {
	if len(train) == 0 {
		return models.ScaleModel{}, fmt.Errorf("%w: empty training slice", ErrFit)
	}
	t := ChooseTransform(train)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range train {
		if v < 0 {
			return models.ScaleModel{}, fmt.Errorf("%w: negative value %g", ErrFit, v)
		}
		x := Forward(t, v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return models.ScaleModel{}, fmt.Errorf("%w: non-finite transform of %g", ErrFit, v)
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi-lo == 0 {
		return models.ScaleModel{}, fmt.Errorf("%w: zero range", ErrFit)
	}
	return models.ScaleModel{Transform: t, Min: lo, Max: hi}, nil
}

// Scale maps a raw value into normalized units.
func Scale(m models.ScaleModel, v float64) float64 {
	return (Forward(m.Transform, v) - m.Min) / (m.Max - m.Min)
}

// Unscale maps a normalized value back into raw units.
func Unscale(m models.ScaleModel, v float64) float64 {
	return Inverse(m.Transform, v*(m.Max-m.Min)+m.Min)
}
