package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	st := Describe([]float64{9, 2, 4, 4, 5, 5, 7, 4})
	assert.Equal(t, 8, st.Count)
	assert.Equal(t, 40.0, st.Total)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 9.0, st.Max)
	assert.Equal(t, 5.0, st.Mean)
	assert.Equal(t, 4.5, st.Median)
	assert.InDelta(t, math.Sqrt(32.0/7), st.StdDev, 1e-9)

	odd := Describe([]float64{3, 1, 2})
	assert.Equal(t, 2.0, odd.Median)
	assert.Equal(t, 1.0, odd.StdDev)

	assert.Equal(t, Statistics{}, Describe(nil))
	one := Describe([]float64{7})
	assert.Equal(t, Statistics{Count: 1, Total: 7, Min: 7, Max: 7, Mean: 7, Median: 7}, one)
}

func TestDescribeKeepsInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Describe(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestNewHistoricalData(t *testing.T) {
	s := DailySeries{ProductID: "p1", Points: []DailyPoint{
		{Date: day(1), TotalCount: 3, FakeCount: 1},
		{Date: day(2), TotalCount: 0, FakeCount: 0},
	}}
	h := NewHistoricalData(s)
	assert.Equal(t, "p1", h.ProductID)
	assert.Equal(t, DateRange{Start: "2024-01-01", End: "2024-01-02"}, h.DateRange)
	assert.Equal(t, []HistoricalPoint{{Date: "2024-01-01", Total: 3, Fake: 1}, {Date: "2024-01-02"}}, h.Data)

	empty := NewHistoricalData(DailySeries{ProductID: "p2"})
	assert.Empty(t, empty.Data)
	assert.Equal(t, DateRange{}, empty.DateRange)
}

func TestPipelineOutputStatistics(t *testing.T) {
	history := DailySeries{ProductID: "p1", Points: []DailyPoint{
		{Date: day(1), TotalCount: 4, FakeCount: 1},
		{Date: day(2), TotalCount: 2, FakeCount: 0},
		{Date: day(3), TotalCount: 6, FakeCount: 5},
	}}
	f := ReconstructedForecast{
		ProductID:   "p1",
		TargetField: ColumnFake,
		Problem:     ProblemFakeReview,
		Points:      []ForecastPoint{{Date: day(4), Value: 2}},
	}

	out := NewPipelineOutput(f, 1, history)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, &DateRange{Start: "2024-01-01", End: "2024-01-03"}, out.Metadata.DataRange)
	require.NotNil(t, out.Metadata.ProductStatistics)
	assert.Equal(t, 6.0, out.Metadata.ProductStatistics.Total)
	assert.Equal(t, 5.0, out.Metadata.ProductStatistics.Max)
	assert.Equal(t, 1.0, out.Metadata.ProductStatistics.Median)

	bare := NewPipelineOutput(f, 1, DailySeries{})
	assert.Nil(t, bare.Metadata.DataRange)
	assert.Nil(t, bare.Metadata.ProductStatistics)
}
