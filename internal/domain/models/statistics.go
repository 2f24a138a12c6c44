package models

import (
	"math"
	"sort"
)

// Statistics summarizes one column of a series.
type Statistics struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std"`
}

// SeriesStatistics reports the statistics of a stored product series.
type SeriesStatistics struct {
	ProductID string    `json:"product_id"`
	Target    string    `json:"target"`
	DateRange DateRange `json:"date_range"`
	Statistics
}

// HistoricalPoint is one day of a historical series response.
type HistoricalPoint struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
	Fake  int    `json:"fake"`
}

// HistoricalData is a stored series restricted to a date window.
type HistoricalData struct {
	ProductID string            `json:"product_id"`
	DateRange DateRange         `json:"date_range"`
	Data      []HistoricalPoint `json:"data"`
}

// Describe computes summary statistics. StdDev is the sample standard
// deviation and is 0 below two values. Empty input yields zeros.
func Describe(values []float64) Statistics {
	n := len(values)
	if n == 0 {
		return Statistics{}
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	st := Statistics{Count: n, Min: sorted[0], Max: sorted[n-1]}
	for _, v := range values {
		st.Total += v
	}
	st.Mean = st.Total / float64(n)
	if n%2 == 1 {
		st.Median = sorted[n/2]
	} else {
		st.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if n > 1 {
		var ss float64
		for _, v := range values {
			d := v - st.Mean
			ss += d * d
		}
		st.StdDev = math.Sqrt(ss / float64(n-1))
	}
	return st
}

// NewHistoricalData renders a series for the data API.
func NewHistoricalData(s DailySeries) HistoricalData {
	out := HistoricalData{ProductID: s.ProductID, Data: make([]HistoricalPoint, len(s.Points))}
	for i, p := range s.Points {
		out.Data[i] = HistoricalPoint{Date: p.Date.Format(DateLayout), Total: p.TotalCount, Fake: p.FakeCount}
	}
	out.DateRange = s.Range()
	return out
}
