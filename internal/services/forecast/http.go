package forecast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domsvc "ReviewCast/internal/domain/service"
	xhttp "ReviewCast/pkg/http"
	applogger "ReviewCast/pkg/logger"

	"github.com/google/uuid"
)

// ModeHTTP calls a model service over HTTP.
const ModeHTTP = "http"

// HTTPServiceBase centralizes client construction and JSON POSTs to the model
// service.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service url not configured")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry posts JSON with up to `attempts` tries. Rejections by the
// service (4xx) are not retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Get fetches path and decodes JSON into dest.
func (b *HTTPServiceBase) Get(ctx context.Context, path string, dest interface{}) error {
	return b.client.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: b.baseURL + path}, dest)
}

// HTTPForecaster calls a model service that accepts the input table as JSON.
type HTTPForecaster struct {
	base       *HTTPServiceBase
	baseURL    string
	attempts   int
	minHistory int
	l          *applogger.Logger
}

// NewHTTPForecaster builds a forecaster for the service at baseURL.
func NewHTTPForecaster(baseURL string, timeout time.Duration, attempts, minHistory int) *HTTPForecaster {
	return &HTTPForecaster{
		base:       NewHTTPServiceBase(baseURL, timeout),
		baseURL:    baseURL,
		attempts:   attempts,
		minHistory: minHistory,
	}
}

// SetLogger injects a structured logger.
func (f *HTTPForecaster) SetLogger(l *applogger.Logger) { f.l = l }

type forecastReq struct {
	InvocationID string              `json:"invocation_id"`
	ProductID    string              `json:"product_id"`
	Problem      string              `json:"problem"`
	Target       string              `json:"target"`
	Mode         string              `json:"mode"`
	Features     []string            `json:"features"`
	Horizon      int                 `json:"horizon"`
	Rows         []map[string]string `json:"rows"`
}

type forecastResp struct {
	Shape        []int     `json:"shape"`
	Data         []float64 `json:"data"`
	FeatureIndex *int      `json:"feature_index"`
}

func (f *HTTPForecaster) Invoke(ctx context.Context, req models.ForecastRequest) (models.RawForecastTensor, error) {
	if err := validateRequest(req, f.minHistory); err != nil {
		return models.RawForecastTensor{}, err
	}
	table, err := BuildTable(req.Series, req.Problem)
	if err != nil {
		return models.RawForecastTensor{}, err
	}

	body := forecastReq{
		InvocationID: uuid.NewString(),
		ProductID:    req.Series.ProductID,
		Problem:      string(req.Problem.Name),
		Target:       req.Problem.Target,
		Mode:         req.Problem.Mode,
		Features:     req.Problem.Features,
		Horizon:      req.HorizonDays,
		Rows:         make([]map[string]string, len(table.Rows)),
	}
	for i, row := range table.Rows {
		m := make(map[string]string, len(row))
		for j, col := range table.Header {
			m[col] = row[j]
		}
		body.Rows[i] = m
	}

	start := time.Now()
	var resp forecastResp
	if err := f.base.PostJSONWithRetry(ctx, "/forecast", body, &resp, f.attempts); err != nil {
		if f.l != nil {
			f.l.Error("model service forecast failed",
				applogger.String("invocation_id", body.InvocationID),
				applogger.String("product_id", body.ProductID),
				applogger.Duration("duration_ms", time.Since(start)),
				applogger.Error(err),
			)
		}
		if isTimeout(err) {
			return models.RawForecastTensor{}, errs.ForecastTimeout(err)
		}
		return models.RawForecastTensor{}, errs.ForecastFailed(detailsOf(err), err)
	}

	shape, err := tensorShape(resp.Shape, len(resp.Data))
	if err != nil {
		return models.RawForecastTensor{}, err
	}
	fi := channelFor(req.Problem, shape)
	if resp.FeatureIndex != nil {
		fi = *resp.FeatureIndex
	}
	return models.RawForecastTensor{
		Data:         resp.Data,
		Shape:        shape,
		FeatureIndex: fi,
		InvocationID: body.InvocationID,
	}, nil
}

// Status probes GET /health on the model service.
func (f *HTTPForecaster) Status(ctx context.Context) domsvc.ForecasterStatus {
	st := domsvc.ForecasterStatus{
		Mode:    ModeHTTP,
		Checks:  map[string]bool{"service": false},
		Details: map[string]string{"url": f.baseURL},
	}
	if f.baseURL == "" {
		st.Details["service_error"] = "url not configured"
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var health map[string]interface{}
	if err := f.base.Get(ctx, "/health", &health); err != nil {
		st.Details["service_error"] = err.Error()
		return st
	}
	st.Checks["service"] = true
	st.Available = true
	return st
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func detailsOf(err error) string {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return "status " + strconv.Itoa(se.StatusCode) + ": " + se.Body
	}
	return err.Error()
}

var (
	_ domsvc.Forecaster     = (*HTTPForecaster)(nil)
	_ domsvc.StatusReporter = (*HTTPForecaster)(nil)
)
