package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	"ReviewCast/pkg/util"

	"github.com/xuri/excelize/v2"
)

// Required input columns.
const (
	ColProductID = "prod_id"
	ColDate      = "date"
	ColTag       = "tag"
)

var requiredColumns = []string{ColProductID, ColDate, ColTag}

// AllowedExtensions lists the file types the reader accepts.
var AllowedExtensions = []string{".csv", ".xlsx"}

// ReadFile reads a review log from disk.
func ReadFile(path string) ([]models.ReviewRecord, models.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.FileInfo{}, errs.Invalid("file not found: %s", path)
		}
		return nil, models.FileInfo{}, errs.Internal("open review log", err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read parses a review log, choosing the format from the name's extension.
func Read(r io.Reader, name string) ([]models.ReviewRecord, models.FileInfo, error) {
	rows, parseDate, err := readRows(r, name)
	if err != nil {
		return nil, models.FileInfo{}, err
	}
	return parseRows(rows, parseDate)
}

// Allowed reports whether a file name has a supported extension.
func Allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

type dayParser func(string) (time.Time, bool)

func readRows(r io.Reader, name string) ([][]string, dayParser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, nil, errs.Invalid("parse csv: %v", err)
		}
		return rows, util.ParseDay, nil
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, nil, errs.Invalid("parse xlsx: %v", err)
		}
		defer f.Close()
		// Raw values keep date cells as serial numbers instead of the
		// locale-formatted display text.
		rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, nil, errs.Invalid("read xlsx sheet: %v", err)
		}
		return rows, excelDayParser(date1904(f)), nil
	default:
		return nil, nil, errs.Invalid("unsupported file type %q, allowed: %s", filepath.Ext(name), strings.Join(AllowedExtensions, ", "))
	}
}

// excelDayParser accepts text dates and Excel date serials.
func excelDayParser(use1904 bool) dayParser {
	return func(s string) (time.Time, bool) {
		if d, ok := util.ParseDay(s); ok {
			return d, true
		}
		serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, use1904)
		if err != nil {
			return time.Time{}, false
		}
		return util.TruncateDay(t), true
	}
}

func date1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}

func parseRows(rows [][]string, parseDate dayParser) ([]models.ReviewRecord, models.FileInfo, error) {
	if len(rows) == 0 {
		return nil, models.FileInfo{}, errs.MissingColumns(requiredColumns)
	}

	header := make([]string, len(rows[0]))
	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, models.FileInfo{}, errs.MissingColumns(missing)
	}

	pi, di, ti := idx[ColProductID], idx[ColDate], idx[ColTag]
	records := make([]models.ReviewRecord, 0, len(rows)-1)
	info := models.FileInfo{Columns: header}
	products := make(map[string]struct{})
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := n + 2
		id := util.NormalizeID(cell(row, pi))
		if id == "" {
			return nil, models.FileInfo{}, errs.Invalid("row %d: empty %s", line, ColProductID)
		}
		d, ok := parseDate(cell(row, di))
		if !ok {
			return nil, models.FileInfo{}, errs.Invalid("row %d: unparseable %s %q", line, ColDate, cell(row, di))
		}
		fake := strings.TrimSpace(cell(row, ti)) == models.TagFake

		records = append(records, models.ReviewRecord{ProductID: id, Date: d, IsFake: fake})
		products[id] = struct{}{}
		if fake {
			info.FakeCount++
		}
	}

	info.Rows = len(records)
	info.Products = len(products)
	if len(records) > 0 {
		lo, hi := records[0].Date, records[0].Date
		for _, r := range records[1:] {
			if r.Date.Before(lo) {
				lo = r.Date
			}
			if r.Date.After(hi) {
				hi = r.Date
			}
		}
		info.DateRange = models.DateRange{Start: lo.Format(models.DateLayout), End: hi.Format(models.DateLayout)}
	}
	return records, info, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteSeriesCSV writes a regularized series in the preprocess output layout
// (date,total,fake).
func WriteSeriesCSV(w io.Writer, s models.DailySeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{models.ColumnDate, models.ColumnTotal, models.ColumnFake}); err != nil {
		return err
	}
	for _, p := range s.Points {
		if err := cw.Write([]string{
			p.Date.Format(models.DateLayout),
			fmt.Sprint(p.TotalCount),
			fmt.Sprint(p.FakeCount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
