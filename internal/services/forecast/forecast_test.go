package forecast

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(id string, fake ...int) models.DailySeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := models.DailySeries{ProductID: id}
	for i, f := range fake {
		s.Points = append(s.Points, models.DailyPoint{Date: start.AddDate(0, 0, i), TotalCount: f + 2, FakeCount: f})
	}
	return s
}

func fakeReview(t *testing.T) models.ProblemConfig {
	t.Helper()
	p, ok := models.LookupProblem(models.ProblemFakeReview)
	require.True(t, ok)
	return p
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, series("p", 1, 0, 3), fakeReview(t)))
	assert.Equal(t, "date,total,fake\n2024-01-01,3,1\n2024-01-02,2,0\n2024-01-03,5,3\n", buf.String())
}

func TestEncodeCSVMissingFeature(t *testing.T) {
	p, ok := models.LookupProblem(models.ProblemSalesForecast)
	require.True(t, ok)
	err := EncodeCSV(&bytes.Buffer{}, series("p", 1), p)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Contains(t, err.Error(), "sales")
}

func TestValidateRequest(t *testing.T) {
	p := fakeReview(t)
	assert.NoError(t, validateRequest(models.ForecastRequest{Series: series("p", 1, 2), HorizonDays: 3, Problem: p}, 2))
	assert.Error(t, validateRequest(models.ForecastRequest{Series: series("p", 1), HorizonDays: 3, Problem: p}, 2))
	assert.Error(t, validateRequest(models.ForecastRequest{Series: series("p", 1), HorizonDays: 0, Problem: p}, 1))
	assert.Error(t, validateRequest(models.ForecastRequest{Series: series("", 1), HorizonDays: 1, Problem: p}, 1))
}

func TestChannelFor(t *testing.T) {
	p := fakeReview(t)
	assert.Equal(t, 0, channelFor(p, models.Batch{B: 1, T: 5, F: 1}))
	assert.Equal(t, 1, channelFor(p, models.Batch{B: 1, T: 5, F: 2}))
	assert.Equal(t, 1, channelFor(p, models.TimeFeature{T: 5, F: 2}))
	assert.Equal(t, 0, channelFor(p, models.Flat{T: 5}))
}

func TestNPYRoundTrip(t *testing.T) {
	for _, dims := range [][]int{{4}, {2, 2}, {1, 4, 1}} {
		var buf bytes.Buffer
		data := []float64{0.5, 1.5, -2, 3.25}
		require.NoError(t, EncodeNPY(&buf, data, dims))
		assert.Zero(t, (buf.Len()-len(data)*8)%64, "header must be 64-byte aligned")

		got, gotDims, err := DecodeNPY(&buf)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		assert.Equal(t, dims, gotDims)
	}
}

func rawNPY(t *testing.T, descr, shape string, payload interface{}) []byte {
	t.Helper()
	header := "{'descr': '" + descr + "', 'fortran_order': False, 'shape': " + shape + ", }\n"
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, payload))
	return buf.Bytes()
}

func TestDecodeNPYDtypes(t *testing.T) {
	got, dims, err := DecodeNPY(bytes.NewReader(rawNPY(t, "<f4", "(3,)", []float32{1, 2.5, 3})))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, got)
	assert.Equal(t, []int{3}, dims)

	got, dims, err = DecodeNPY(bytes.NewReader(rawNPY(t, "<i8", "(1, 2)", []int64{7, 9})))
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 9}, got)
	assert.Equal(t, []int{1, 2}, dims)

	got, _, err = DecodeNPY(bytes.NewReader(rawNPY(t, "<i4", "(2,)", []int32{-1, 4})))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 4}, got)
}

func TestDecodeNPYRejects(t *testing.T) {
	_, _, err := DecodeNPY(bytes.NewReader([]byte("not an npy file")))
	assert.Error(t, err)

	_, _, err = DecodeNPY(bytes.NewReader(rawNPY(t, ">f8", "(1,)", []float64{1})))
	assert.Error(t, err)

	_, _, err = DecodeNPY(bytes.NewReader(rawNPY(t, "<f8", "()", []float64{1})))
	assert.Error(t, err)

	_, _, err = DecodeNPY(bytes.NewReader(rawNPY(t, "<f8", "(3,)", []float64{1})))
	assert.Error(t, err)
}

func TestExpandArgs(t *testing.T) {
	got := ExpandArgs(
		[]string{"--root_path", "{root_path}", "--pred_len", "{pred_len}", "--tag={target}-{pred_len}"},
		map[string]string{"root_path": "/w/1", "pred_len": "7", "target": "fake"},
	)
	assert.Equal(t, []string{"--root_path", "/w/1", "--pred_len", "7", "--tag=fake-7"}, got)
}

func TestStubPersistence(t *testing.T) {
	f := NewStubForecaster(nil)
	raw, err := f.Invoke(context.Background(), models.ForecastRequest{
		Series:      series("p", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		HorizonDays: 4,
		Problem:     fakeReview(t),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Batch{B: 1, T: 4, F: 1}, raw.Shape)
	require.Len(t, raw.Data, 4)
	assert.Greater(t, raw.Data[0], 1.0, "last value lies above the training range")
	assert.Equal(t, int64(1), f.Calls())
}

func TestStubRejectsBeforeCalling(t *testing.T) {
	f := NewStubForecaster(func(context.Context, models.ForecastRequest) (models.RawForecastTensor, error) {
		return models.RawForecastTensor{}, errors.New("should not run")
	})
	p, _ := models.LookupProblem(models.ProblemSalesForecast)
	_, err := f.Invoke(context.Background(), models.ForecastRequest{Series: series("p", 1), HorizonDays: 1, Problem: p})
	require.Error(t, err)
	assert.Equal(t, int64(0), f.Calls())
}

func TestTensorShapeRejectsBadOutput(t *testing.T) {
	shape, err := tensorShape([]int{1, 3, 2}, 6)
	require.NoError(t, err)
	assert.Equal(t, models.Batch{B: 1, T: 3, F: 2}, shape)

	for _, tc := range []struct {
		dims []int
		n    int
	}{
		{[]int{1, 1, 3, 2}, 6},
		{nil, 1},
		{[]int{3, 2}, 5},
	} {
		_, err := tensorShape(tc.dims, tc.n)
		require.Error(t, err, tc.dims)
		assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
		assert.True(t, errors.Is(err, errs.ErrForecastFailed))
	}
}
