package series

import (
	"sort"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
)

const day = 24 * time.Hour

// Build converts a raw review log into one regularized daily series per
// product. When productID is non-empty only that product is built and it must
// be present in the log.
func Build(records []models.ReviewRecord, productID string) (map[string]models.DailySeries, error) {
	grouped := make(map[string][]models.ReviewRecord)
	for _, r := range records {
		grouped[r.ProductID] = append(grouped[r.ProductID], r)
	}

	if productID != "" {
		recs, ok := grouped[productID]
		if !ok {
			return nil, errs.UnknownProduct(productID, ProductIDs(records))
		}
		return map[string]models.DailySeries{productID: buildOne(productID, recs)}, nil
	}

	out := make(map[string]models.DailySeries, len(grouped))
	for id, recs := range grouped {
		out[id] = buildOne(id, recs)
	}
	return out, nil
}

// BuildOne builds the series of a single product.
func BuildOne(records []models.ReviewRecord, productID string) (models.DailySeries, error) {
	m, err := Build(records, productID)
	if err != nil {
		return models.DailySeries{}, err
	}
	return m[productID], nil
}

func buildOne(id string, recs []models.ReviewRecord) models.DailySeries {
	if len(recs) == 0 {
		return models.DailySeries{ProductID: id}
	}

	type counts struct{ total, fake int }
	byDay := make(map[time.Time]*counts)
	minDay, maxDay := Truncate(recs[0].Date), Truncate(recs[0].Date)
	for _, r := range recs {
		d := Truncate(r.Date)
		if d.Before(minDay) {
			minDay = d
		}
		if d.After(maxDay) {
			maxDay = d
		}
		c, ok := byDay[d]
		if !ok {
			c = &counts{}
			byDay[d] = c
		}
		c.total++
		if r.IsFake {
			c.fake++
		}
	}

	n := int(maxDay.Sub(minDay)/day) + 1
	points := make([]models.DailyPoint, 0, n)
	for d := minDay; !d.After(maxDay); d = d.AddDate(0, 0, 1) {
		p := models.DailyPoint{Date: d}
		if c, ok := byDay[d]; ok {
			p.TotalCount = c.total
			p.FakeCount = c.fake
		}
		points = append(points, p)
	}
	return models.DailySeries{ProductID: id, Points: points}
}

// Truncate drops the time of day and normalizes to UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ProductIDs returns the sorted distinct product ids of a log.
func ProductIDs(records []models.ReviewRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.ProductID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedIDs returns the keys of a build result in a stable order.
func SortedIDs(m map[string]models.DailySeries) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summarize describes a built series for the preprocess report.
func Summarize(s models.DailySeries) models.SeriesSummary {
	total, fake := s.Totals()
	sum := models.SeriesSummary{
		ProductID:     s.ProductID,
		TotalDays:     s.Len(),
		TotalComments: total,
		FakeComments:  fake,
		Status:        models.StatusSuccess,
	}
	if s.Len() > 0 {
		sum.DateRange = models.DateRange{
			Start: s.FirstDate().Format(models.DateLayout),
			End:   s.LastDate().Format(models.DateLayout),
		}
	}
	return sum
}

// Window restricts a series to the days in [from, to]. A zero bound is open.
func Window(s models.DailySeries, from, to time.Time) models.DailySeries {
	out := models.DailySeries{ProductID: s.ProductID}
	for _, p := range s.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Sanitize enforces fake <= total on a series that did not come from Build.
// It returns the number of clamped days.
func Sanitize(s *models.DailySeries) int {
	clamped := 0
	for i := range s.Points {
		p := &s.Points[i]
		if p.TotalCount < 0 {
			p.TotalCount = 0
			clamped++
		}
		if p.FakeCount < 0 {
			p.FakeCount = 0
			clamped++
		}
		if p.FakeCount > p.TotalCount {
			p.FakeCount = p.TotalCount
			clamped++
		}
	}
	return clamped
}
