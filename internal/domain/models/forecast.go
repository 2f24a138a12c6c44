package models

import "time"

// Problem names an external model configuration.
type Problem string

const (
	ProblemFakeReview    Problem = "fake_review"
	ProblemSalesForecast Problem = "sales_forecast"
)

// ProblemConfig describes the model's expected input table and output channel.
type ProblemConfig struct {
	Name     Problem
	Target   string
	Features []string // column order of the input table, date excluded
	Mode     string   // M, S or MS
	EncIn    int
	DecIn    int
	COut     int
	// Count targets are rounded after reconstruction.
	Count bool
}

var problems = map[Problem]ProblemConfig{
	ProblemFakeReview: {
		Name:     ProblemFakeReview,
		Target:   ColumnFake,
		Features: []string{ColumnTotal, ColumnFake},
		Mode:     "MS",
		EncIn:    2,
		DecIn:    2,
		COut:     1,
		Count:    true,
	},
	ProblemSalesForecast: {
		Name:     ProblemSalesForecast,
		Target:   ColumnSales,
		Features: []string{ColumnTotal, ColumnFake, ColumnSales},
		Mode:     "MS",
		EncIn:    3,
		DecIn:    3,
		COut:     1,
	},
}

// LookupProblem returns the configuration for a problem name.
func LookupProblem(p Problem) (ProblemConfig, bool) {
	cfg, ok := problems[p]
	return cfg, ok
}

// FeatureIndex returns the position of the target among the features.
func (p ProblemConfig) FeatureIndex() int {
	for i, f := range p.Features {
		if f == p.Target {
			return i
		}
	}
	return len(p.Features) - 1
}

// IsCountTarget reports whether values of the named column are counts.
func IsCountTarget(target string) bool {
	return target == ColumnFake || target == ColumnTotal
}

// ForecastRequest is what the pipeline hands to a Forecaster.
type ForecastRequest struct {
	Series      DailySeries
	HorizonDays int
	Problem     ProblemConfig
}

// TensorShape is the variant of a raw model output.
type TensorShape interface {
	Rank() int
	Dims() []int
}

// Batch is a rank-3 output (batch, time, feature).
type Batch struct{ B, T, F int }

// TimeFeature is a rank-2 output (time, feature).
type TimeFeature struct{ T, F int }

// Flat is a rank-1 output (time).
type Flat struct{ T int }

func (Batch) Rank() int { return 3 }
func (s Batch) Dims() []int { return []int{s.B, s.T, s.F} }
func (TimeFeature) Rank() int { return 2 }
func (s TimeFeature) Dims() []int { return []int{s.T, s.F} }
func (Flat) Rank() int { return 1 }
func (s Flat) Dims() []int { return []int{s.T} }

// ShapeFromDims maps a dimension list to its variant.
func ShapeFromDims(dims []int) (TensorShape, bool) {
	switch len(dims) {
	case 3:
		return Batch{B: dims[0], T: dims[1], F: dims[2]}, true
	case 2:
		return TimeFeature{T: dims[0], F: dims[1]}, true
	case 1:
		return Flat{T: dims[0]}, true
	default:
		return nil, false
	}
}

// ShapeSize returns the number of elements a shape holds.
func ShapeSize(s TensorShape) int {
	n := 1
	for _, d := range s.Dims() {
		n *= d
	}
	return n
}

// RawForecastTensor is the model output in normalized units, row-major.
type RawForecastTensor struct {
	Data         []float64
	Shape        TensorShape
	FeatureIndex int
	InvocationID string
}

// Transform names the variance-stabilizing transform applied before scaling.
type Transform string

const (
	TransformLog   Transform = "log"
	TransformLog1p Transform = "log1p"
	TransformNone  Transform = "none"
)

// ScaleModel is a fitted transform plus min-max scaler.
type ScaleModel struct {
	Transform Transform `json:"transform"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
}

// Degraded reasons.
const (
	DegradedTargetAbsent = "target_absent"
	DegradedFitFailed    = "fit_failed"
	DegradedNonFinite    = "non_finite_output"
)

// ForecastPoint is one reconstructed day.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ReconstructedForecast is a forecast in real-world units.
type ReconstructedForecast struct {
	ProductID      string          `json:"product_id"`
	TargetField    string          `json:"target_field"`
	Problem        Problem         `json:"problem"`
	Points         []ForecastPoint `json:"points"`
	TransformUsed  Transform       `json:"transform_used"`
	Degraded       bool            `json:"degraded_mode"`
	DegradedReason string          `json:"degraded_reason,omitempty"`
	Scale          *ScaleModel     `json:"scale,omitempty"`
	InvocationID   string          `json:"invocation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Values returns the forecast values in date order.
func (f ReconstructedForecast) Values() []float64 {
	out := make([]float64, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Value
	}
	return out
}
