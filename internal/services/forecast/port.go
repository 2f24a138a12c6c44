// Package forecast implements the boundary to the external sequence model:
// encoding the input table, invoking the model and decoding its raw output.
package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
)

// DefaultMinHistory is the shortest series handed to a model.
const DefaultMinHistory = 1

// Table is the model input: a header row followed by one row per day.
type Table struct {
	Header []string
	Rows   [][]string
}

// BuildTable lays the series out as date plus the problem's features in their
// configured order. A feature the series cannot supply is a validation error.
func BuildTable(s models.DailySeries, p models.ProblemConfig) (Table, error) {
	cols := make([][]float64, len(p.Features))
	for i, name := range p.Features {
		v, ok := s.Column(name)
		if !ok {
			return Table{}, errs.Invalid("series for product %s has no %q column required by problem %s", s.ProductID, name, p.Name)
		}
		cols[i] = v
	}

	t := Table{Header: append([]string{models.ColumnDate}, p.Features...)}
	t.Rows = make([][]string, len(s.Points))
	for r, pt := range s.Points {
		row := make([]string, 0, len(cols)+1)
		row = append(row, pt.Date.Format(models.DateLayout))
		for _, c := range cols {
			row = append(row, strconv.FormatFloat(c[r], 'f', -1, 64))
		}
		t.Rows[r] = row
	}
	return t, nil
}

// EncodeCSV writes the model input table as CSV.
func EncodeCSV(w io.Writer, s models.DailySeries, p models.ProblemConfig) error {
	t, err := BuildTable(s, p)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func validateRequest(req models.ForecastRequest, minHistory int) error {
	if req.Series.ProductID == "" {
		return errs.Invalid("product id is required")
	}
	if req.HorizonDays <= 0 {
		return errs.Invalid("horizon must be positive, got %d", req.HorizonDays)
	}
	if len(req.Problem.Features) == 0 {
		return errs.Invalid("problem %q has no features", req.Problem.Name)
	}
	if minHistory < 1 {
		minHistory = DefaultMinHistory
	}
	if req.Series.Len() < minHistory {
		return errs.Invalid("series for product %s has %d days, model needs at least %d", req.Series.ProductID, req.Series.Len(), minHistory)
	}
	return nil
}

// tensorShape validates a model output's dimensions against its value count.
func tensorShape(dims []int, n int) (models.TensorShape, error) {
	shape, ok := models.ShapeFromDims(dims)
	if !ok {
		return nil, errs.ForecastFailed(fmt.Sprintf("unsupported output rank %d", len(dims)), nil)
	}
	if size := models.ShapeSize(shape); size != n {
		return nil, errs.ForecastFailed(fmt.Sprintf("shape %v holds %d values, got %d", dims, size, n), nil)
	}
	return shape, nil
}

// channelFor picks the target channel of a model output: the target's
// feature position when every feature is emitted, otherwise the first channel.
func channelFor(p models.ProblemConfig, shape models.TensorShape) int {
	dims := shape.Dims()
	if shape.Rank() >= 2 && dims[len(dims)-1] == len(p.Features) && len(p.Features) > 1 {
		return p.FeatureIndex()
	}
	return 0
}
