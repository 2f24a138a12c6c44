package models

import "time"

// DateLayout is the calendar-day format used on every wire boundary.
const DateLayout = "2006-01-02"

// TagFake marks a review as fake in the raw log.
const TagFake = "fake"

// ReviewRecord is one row of the raw review log.
type ReviewRecord struct {
	ProductID string
	Date      time.Time // truncated to the calendar day, UTC
	IsFake    bool
}

// DailyPoint is one day of a regularized series.
type DailyPoint struct {
	Date       time.Time `json:"date"`
	TotalCount int       `json:"total"`
	FakeCount  int       `json:"fake"`
}

// DailySeries is a gap-free, strictly increasing daily series for one product.
type DailySeries struct {
	ProductID string       `json:"product_id"`
	Points    []DailyPoint `json:"points"`
}

// Len returns the number of days in the series.
func (s DailySeries) Len() int { return len(s.Points) }

// FirstDate returns the first day, zero time when empty.
func (s DailySeries) FirstDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// LastDate returns the last day, zero time when empty.
func (s DailySeries) LastDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Range returns the first and last day, empty when the series is.
func (s DailySeries) Range() DateRange {
	if len(s.Points) == 0 {
		return DateRange{}
	}
	return DateRange{Start: s.FirstDate().Format(DateLayout), End: s.LastDate().Format(DateLayout)}
}

// Column returns the values of a named series column and whether the series
// carries it at all.
func (s DailySeries) Column(name string) ([]float64, bool) {
	var pick func(DailyPoint) int
	switch name {
	case ColumnTotal:
		pick = func(p DailyPoint) int { return p.TotalCount }
	case ColumnFake:
		pick = func(p DailyPoint) int { return p.FakeCount }
	default:
		return nil, false
	}
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = float64(pick(p))
	}
	return out, true
}

// Totals returns the summed total and fake counts.
func (s DailySeries) Totals() (total, fake int) {
	for _, p := range s.Points {
		total += p.TotalCount
		fake += p.FakeCount
	}
	return total, fake
}

// Series column names.
const (
	ColumnDate  = "date"
	ColumnTotal = "total"
	ColumnFake  = "fake"
	ColumnSales = "sales"
)

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SeriesSummary describes one preprocessed product.
type SeriesSummary struct {
	ProductID     string    `json:"product_id"`
	DateRange     DateRange `json:"date_range"`
	TotalDays     int       `json:"total_days"`
	TotalComments int       `json:"total_comments"`
	FakeComments  int       `json:"fake_comments"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// PreprocessResult is the outcome of turning one uploaded log into series.
type PreprocessResult struct {
	OriginalFile  string          `json:"original_file"`
	TotalProducts int             `json:"total_products"`
	AllProductIDs []string        `json:"all_product_ids"`
	Products      []SeriesSummary `json:"products"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
}

// FileInfo previews an uploaded review log.
type FileInfo struct {
	OriginalName string     `json:"original_name,omitempty"`
	SavedName    string     `json:"saved_name,omitempty"`
	Path         string     `json:"path,omitempty"`
	Size         int64      `json:"size,omitempty"`
	UploadTime   *time.Time `json:"upload_time,omitempty"`
	Rows         int        `json:"rows"`
	Columns      []string   `json:"columns"`
	Products     int        `json:"products"`
	DateRange    DateRange  `json:"date_range"`
	FakeCount    int        `json:"fake_count"`
}
