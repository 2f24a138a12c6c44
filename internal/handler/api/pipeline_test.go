package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	"ReviewCast/internal/repository"
	"ReviewCast/internal/services/alert"
	"ReviewCast/internal/services/forecast"
	"ReviewCast/internal/services/scale"
	"ReviewCast/internal/usecase"
	"ReviewCast/pkg/cache"
	"ReviewCast/pkg/ratelimit"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewsCSV = `prod_id,date,tag
1001,2024-01-01,fake
1001,2024-01-02,real
1001,2024-01-03,fake
2002,2024-01-02,real
`

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	e     *echo.Echo
	store *repository.MemorySeriesStore
	file  string
	dir   string
}

func newTestServer(t *testing.T, fn forecast.StubFunc, limiter *ratelimit.Limiter) testServer {
	t.Helper()
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	file := filepath.Join(uploads, "reviews.csv")
	require.NoError(t, os.WriteFile(file, []byte(reviewsCSV), 0o644))

	store := repository.NewMemorySeriesStore()
	engine := alert.NewEngine(repository.NewCacheThresholdStore(cache.NewMemoryCache()))
	p := usecase.NewPipeline(store, forecast.NewStubForecaster(fn), scale.NewReconstructor(), engine,
		usecase.WithUploadDir(uploads),
	)

	e := echo.New()
	NewPipelineHandler(nil, p, limiter).RegisterRoutes(e)
	return testServer{e: e, store: store, file: file, dir: dir}
}

func (s testServer) do(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestForecastEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{
		"file_path":    s.file,
		"product_id":   "1001",
		"horizon_days": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out models.PipelineOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, "fake", out.TargetField)
	require.Len(t, out.Predictions, 3)
	assert.Equal(t, "2024-01-04", out.Predictions[0].Date)
}

func TestForecastDefaultsHorizon(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{
		"file_path":  s.file,
		"product_id": "1001",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.PipelineOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 7, out.ForecastHorizon)
	assert.Equal(t, models.ProblemFakeReview, out.Metadata.Problem)
}

func TestForecastValidation(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec, _ := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{"file_path": s.file})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{"product_id": "1001", "problem": "weather"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{"file_path": s.file, "product_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), errs.CodeUnknownProduct)
}

func TestForecastStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"failed", errs.ForecastFailed("CUDA out of memory", nil), http.StatusBadGateway, errs.CodeForecastFailed},
		{"timeout", errs.ForecastTimeout(context.DeadlineExceeded), http.StatusGatewayTimeout, errs.CodeForecastTimeout},
		{"not found", errs.ResultNotFound("/w/1/results"), http.StatusBadGateway, errs.CodeResultNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, func(context.Context, models.ForecastRequest) (models.RawForecastTensor, error) {
				return models.RawForecastTensor{}, tc.err
			}, nil)
			rec, env := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{"file_path": s.file, "product_id": "1001"})
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, string(env.Data), tc.code)
		})
	}
}

func TestForecastNoStoredSeries(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodPost, "/api/forecast", map[string]interface{}{"product_id": "1001"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, string(env.Data), errs.CodeNotFound)
}

func TestForecastRateLimited(t *testing.T) {
	s := newTestServer(t, nil, ratelimit.New(1, 0.001))
	body := map[string]interface{}{"file_path": s.file, "product_id": "1001"}

	rec, _ := s.do(t, http.MethodPost, "/api/forecast", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/forecast", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/forecaster/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "only forecast routes are limited")
}

func TestPreprocessThenProducts(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodPost, "/api/preprocess", map[string]interface{}{"file_path": s.file})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res models.PreprocessResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Succeeded)

	rec, env = s.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":["1001","2002"],"total":2}`, string(env.Data))
}

func TestFilePathOutsideUploadsRejected(t *testing.T) {
	s := newTestServer(t, nil, nil)
	secret := filepath.Join(s.dir, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte(reviewsCSV), 0o644))

	cases := []struct {
		target string
		body   map[string]interface{}
	}{
		{"/api/preprocess", map[string]interface{}{"file_path": secret}},
		{"/api/preprocess", map[string]interface{}{"file_path": "../secret.csv"}},
		{"/api/forecast", map[string]interface{}{"file_path": "../secret.csv", "product_id": "1001"}},
		{"/api/forecast/batch", map[string]interface{}{"file_path": secret}},
	}
	for _, tc := range cases {
		rec, env := s.do(t, http.MethodPost, tc.target, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.target)
		assert.Contains(t, string(env.Data), errs.CodeInvalidInput, tc.target)
	}

	products, err := s.store.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestBatchForecast(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec, env := s.do(t, http.MethodPost, "/api/forecast/batch", map[string]interface{}{"file_path": s.file, "horizon_days": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out models.BatchOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 2, out.Summary.TotalProducts)
	assert.Equal(t, 2, out.Summary.SuccessfulPredictions)
	assert.Len(t, out.Results, 2)
}

func seedForecast(t *testing.T, s testServer) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := models.DailySeries{ProductID: "p1"}
	for i := 0; i < 5; i++ {
		ds.Points = append(ds.Points, models.DailyPoint{Date: start.AddDate(0, 0, i), TotalCount: 12, FakeCount: 10})
	}
	require.NoError(t, s.store.SaveSeries(ctx, ds))
	f := models.ReconstructedForecast{ProductID: "p1", TargetField: models.ColumnFake}
	for i, v := range []float64{16, 14, 20} {
		f.Points = append(f.Points, models.ForecastPoint{Date: start.AddDate(0, 0, 5+i), Value: v})
	}
	require.NoError(t, s.store.SaveForecast(ctx, f))
}

func TestLatestForecastEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec, env := s.do(t, http.MethodGet, "/api/forecast?product_id=p1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, string(env.Data), errs.CodeNotFound)

	rec, _ = s.do(t, http.MethodGet, "/api/forecast", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	seedForecast(t, s)
	rec, env = s.do(t, http.MethodGet, "/api/forecast?product_id=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out models.PipelineOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Predictions, 3)
	assert.Equal(t, "2024-01-06", out.Predictions[0].Date)
	assert.Equal(t, 20.0, out.Predictions[2].Value)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, &models.DateRange{Start: "2024-01-01", End: "2024-01-05"}, out.Metadata.DataRange)
	require.NotNil(t, out.Metadata.ProductStatistics)
	assert.Equal(t, 50.0, out.Metadata.ProductStatistics.Total)
	assert.Equal(t, 10.0, out.Metadata.ProductStatistics.Mean)
}

func TestHistoricalEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seedForecast(t, s)

	rec, env := s.do(t, http.MethodGet, "/api/data/historical?product_id=p1&start=2024-01-02&end=2024-01-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data models.HistoricalData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "p1", data.ProductID)
	assert.Equal(t, models.DateRange{Start: "2024-01-02", End: "2024-01-03"}, data.DateRange)
	assert.Equal(t, []models.HistoricalPoint{
		{Date: "2024-01-02", Total: 12, Fake: 10},
		{Date: "2024-01-03", Total: 12, Fake: 10},
	}, data.Data)

	rec, env = s.do(t, http.MethodGet, "/api/data/historical?product_id=p1&start=2024-01-04&end=2024-01-02", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), errs.CodeInvalidInput)

	rec, _ = s.do(t, http.MethodGet, "/api/data/historical?product_id=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/data/historical", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatisticsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seedForecast(t, s)

	rec, env := s.do(t, http.MethodGet, "/api/data/statistics?product_id=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st models.SeriesStatistics
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.ColumnFake, st.Target)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, 50.0, st.Total)
	assert.Equal(t, 10.0, st.Median)
	assert.Equal(t, 0.0, st.StdDev)

	rec, env = s.do(t, http.MethodGet, "/api/data/statistics?product_id=p1&target=total&start=2024-01-02&end=2024-01-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.ColumnTotal, st.Target)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 24.0, st.Total)

	rec, _ = s.do(t, http.MethodGet, "/api/data/statistics?product_id=p1&target=sales", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsAndThreshold(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seedForecast(t, s)

	rec, env := s.do(t, http.MethodGet, "/api/alerts?product_id=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.AlertResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 15.0, res.Threshold)
	assert.Equal(t, 2, res.AlertCount)

	rec, _ = s.do(t, http.MethodPost, "/api/alerts/threshold", map[string]interface{}{"product_id": "p1", "threshold": 19})
	require.Equal(t, http.StatusOK, rec.Code)

	_, env = s.do(t, http.MethodGet, "/api/alerts?product_id=p1", nil)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 19.0, res.Threshold)
	assert.Equal(t, 1, res.AlertCount)

	rec, _ = s.do(t, http.MethodPost, "/api/alerts/threshold", map[string]interface{}{"product_id": "p1", "threshold": -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	seedForecast(t, s)

	rec, env := s.do(t, http.MethodGet, "/api/alerts/risk?product_id=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ra models.RiskAssessment
	require.NoError(t, json.Unmarshal(env.Data, &ra))
	assert.Equal(t, "p1", ra.ProductID)
	assert.NotEmpty(t, ra.RiskLevel)

	rec, _ = s.do(t, http.MethodGet, "/api/alerts/risk", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/alerts/risk?product_id=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "reviews.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(reviewsCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 4, info.Rows)
	assert.Equal(t, 2, info.Products)
	assert.True(t, strings.HasSuffix(info.SavedName, "_reviews.csv"))

	req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
