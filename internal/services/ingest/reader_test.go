package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `prod_id,date,tag,text
1001,2024-01-01,fake,bad
1001,2024-01-01 10:30:00,real,good
1002,2024/01/03,fake,meh

1001,2024-01-04,real,ok
`

func TestReadCSV(t *testing.T) {
	records, info, err := Read(strings.NewReader(sampleCSV), "reviews.csv")
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "1001", records[0].ProductID)
	assert.True(t, records[0].IsFake)
	assert.False(t, records[1].IsFake)
	assert.Equal(t, "2024-01-01", records[1].Date.Format(models.DateLayout))

	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, 2, info.Products)
	assert.Equal(t, 2, info.FakeCount)
	assert.Equal(t, models.DateRange{Start: "2024-01-01", End: "2024-01-04"}, info.DateRange)
	assert.Equal(t, []string{"prod_id", "date", "tag", "text"}, info.Columns)
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, _, err := Read(strings.NewReader("prod_id,comment\n1,x\n"), "reviews.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMissingColumns))
	assert.Contains(t, err.Error(), "date")
	assert.Contains(t, err.Error(), "tag")
	assert.NotContains(t, err.Error(), "prod_id")
}

func TestReadCSVBadDate(t *testing.T) {
	_, _, err := Read(strings.NewReader("prod_id,date,tag\n1,someday,fake\n"), "reviews.csv")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Contains(t, err.Error(), "row 2")
}

func TestReadUnsupportedExtension(t *testing.T) {
	_, _, err := Read(strings.NewReader(""), "reviews.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	assert.False(t, Allowed("reviews.txt"))
	assert.True(t, Allowed("Reviews.XLSX"))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"prod_id", "date", "tag"},
		{123, "2024-02-01", "fake"},
		{123, "2024-02-03", "real"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, info, err := Read(bytes.NewReader(buf.Bytes()), "upload.xlsx")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "123", records[0].ProductID)
	assert.Equal(t, 1, info.FakeCount)
	assert.Equal(t, 1, info.Products)
}

func TestReadXLSXDateCells(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"prod_id", "date", "tag"},
		{123, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "fake"},
		{123, time.Date(2024, 2, 3, 15, 30, 0, 0, time.UTC), "real"},
		{456, "2024-02-02", "fake"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	records, info, err := Read(bytes.NewReader(buf.Bytes()), "upload.xlsx")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2024-02-01", records[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-02-03", records[1].Date.Format(models.DateLayout))
	assert.Equal(t, "2024-02-02", records[2].Date.Format(models.DateLayout))
	assert.Equal(t, models.DateRange{Start: "2024-02-01", End: "2024-02-03"}, info.DateRange)
}

func TestReadCSVRejectsSerialDates(t *testing.T) {
	_, _, err := Read(strings.NewReader("prod_id,date,tag\n1,45323,fake\n"), "reviews.csv")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestWriteSeriesCSV(t *testing.T) {
	records, _, err := Read(strings.NewReader(sampleCSV), "reviews.csv")
	require.NoError(t, err)

	var s models.DailySeries
	s.ProductID = "1002"
	s.Points = []models.DailyPoint{{Date: records[2].Date, TotalCount: 1, FakeCount: 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, s))
	assert.Equal(t, "date,total,fake\n2024-01-03,1,1\n", buf.String())
}
