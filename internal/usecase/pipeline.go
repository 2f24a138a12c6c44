package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
	domsvc "ReviewCast/internal/domain/service"
	"ReviewCast/internal/services/alert"
	"ReviewCast/internal/services/ingest"
	"ReviewCast/internal/services/scale"
	"ReviewCast/internal/services/series"
	applogger "ReviewCast/pkg/logger"
	"ReviewCast/pkg/metrics"
	"ReviewCast/pkg/util"

	"github.com/google/uuid"
)

// DefaultMaxHorizon bounds forecast_horizon when no option overrides it.
const DefaultMaxHorizon = 90

// ForecastParams selects the history and model for one forecast. History is
// built from FilePath when set, otherwise loaded from the series store.
type ForecastParams struct {
	FilePath    string
	ProductID   string
	HorizonDays int
	Problem     models.Problem
}

// Pipeline wires SeriesBuilder, Forecaster, Reconstructor and AlertEngine.
type Pipeline struct {
	store      domrepo.SeriesStore
	forecaster domsvc.Forecaster
	recon      *scale.Reconstructor
	alerts     *alert.Engine
	pub        domrepo.AlertPublisher
	metrics    domrepo.Metrics
	l          *applogger.Logger
	uploadDir  string
	maxHorizon int
	now        func() time.Time
}

type PipelineOption func(*Pipeline)

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithPublisher(pub domrepo.AlertPublisher) PipelineOption {
	return func(p *Pipeline) { p.pub = pub }
}

func WithUploadDir(dir string) PipelineOption {
	return func(p *Pipeline) { p.uploadDir = dir }
}

func WithMaxHorizon(days int) PipelineOption {
	return func(p *Pipeline) {
		if days > 0 {
			p.maxHorizon = days
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(store domrepo.SeriesStore, forecaster domsvc.Forecaster, recon *scale.Reconstructor, alerts *alert.Engine, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:      store,
		forecaster: forecaster,
		recon:      recon,
		alerts:     alerts,
		metrics:    metrics.Nop{},
		l:          applogger.NewNop(),
		uploadDir:  "uploads",
		maxHorizon: DefaultMaxHorizon,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Upload stores an uploaded review log under a unique name and previews it.
func (p *Pipeline) Upload(ctx context.Context, name string, r io.Reader) (models.FileInfo, error) {
	if !ingest.Allowed(name) {
		return models.FileInfo{}, errs.Invalid("unsupported file type %q, allowed: %v", filepath.Ext(name), ingest.AllowedExtensions)
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return models.FileInfo{}, errs.Internal("create upload dir", err)
	}
	saved := uuid.NewString() + "_" + filepath.Base(name)
	path := filepath.Join(p.uploadDir, saved)

	f, err := os.Create(path)
	if err != nil {
		return models.FileInfo{}, errs.Internal("create upload file", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return models.FileInfo{}, errs.Internal("write upload file", err)
	}

	_, info, err := ingest.ReadFile(path)
	if err != nil {
		_ = os.Remove(path)
		return models.FileInfo{}, err
	}
	at := p.now().UTC()
	info.OriginalName = filepath.Base(name)
	info.SavedName = saved
	info.Path = path
	info.Size = size
	info.UploadTime = &at

	p.l.Info("review log uploaded",
		applogger.String("file", saved),
		applogger.Int64("bytes", size),
		applogger.Int("rows", info.Rows),
		applogger.Int("products", info.Products),
	)
	return info, nil
}

// Preprocess builds and stores one series per product of a review log. A
// product that fails to persist is reported on its own entry.
func (p *Pipeline) Preprocess(ctx context.Context, filePath, productID string) (models.PreprocessResult, error) {
	defer p.observe("preprocess", p.now())

	path, err := p.uploadPath(filePath)
	if err != nil {
		return models.PreprocessResult{}, p.fail(err)
	}
	records, _, err := ingest.ReadFile(path)
	if err != nil {
		return models.PreprocessResult{}, p.fail(err)
	}
	built, err := series.Build(records, productID)
	if err != nil {
		return models.PreprocessResult{}, p.fail(err)
	}

	res := models.PreprocessResult{
		OriginalFile:  filePath,
		TotalProducts: len(built),
		AllProductIDs: series.ProductIDs(records),
		Products:      make([]models.SeriesSummary, 0, len(built)),
	}
	for _, id := range series.SortedIDs(built) {
		s := built[id]
		sum := series.Summarize(s)
		if err := p.store.SaveSeries(ctx, s); err != nil {
			p.l.Warn("save series failed", applogger.String("product_id", id), applogger.Error(err))
			p.metrics.RecordError(string(errs.KindInternal))
			sum.Status = models.StatusError
			sum.Error = err.Error()
			res.Failed++
		} else {
			res.Succeeded++
		}
		res.Products = append(res.Products, sum)
	}

	p.l.Info("preprocess done",
		applogger.String("file", filePath),
		applogger.Int("products", res.TotalProducts),
		applogger.Int("failed", res.Failed),
	)
	return res, nil
}

// Forecast runs the full forecast path for one product and stores the result.
func (p *Pipeline) Forecast(ctx context.Context, params ForecastParams) (models.PipelineOutput, error) {
	defer p.observe("forecast", p.now())

	if params.ProductID == "" {
		return models.PipelineOutput{}, p.fail(errs.Invalid("product_id is required"))
	}
	problem, err := p.problem(params.Problem)
	if err != nil {
		return models.PipelineOutput{}, p.fail(err)
	}
	if err := p.checkHorizon(params.HorizonDays); err != nil {
		return models.PipelineOutput{}, p.fail(err)
	}

	var s models.DailySeries
	if params.FilePath != "" {
		path, err := p.uploadPath(params.FilePath)
		if err != nil {
			return models.PipelineOutput{}, p.fail(err)
		}
		records, _, err := ingest.ReadFile(path)
		if err != nil {
			return models.PipelineOutput{}, p.fail(err)
		}
		if s, err = series.BuildOne(records, params.ProductID); err != nil {
			return models.PipelineOutput{}, p.fail(err)
		}
		p.saveSeries(ctx, s)
	} else {
		if s, err = p.store.LatestSeries(ctx, params.ProductID); err != nil {
			return models.PipelineOutput{}, p.fail(err)
		}
		if n := series.Sanitize(&s); n > 0 {
			p.l.Warn("stored series clamped", applogger.String("product_id", s.ProductID), applogger.Int("days", n))
		}
	}

	f, err := p.forecastSeries(ctx, s, params.HorizonDays, problem)
	if err != nil {
		return models.PipelineOutput{}, p.fail(err)
	}
	return models.NewPipelineOutput(f, params.HorizonDays, s), nil
}

// ProcessAndPredict forecasts every product of a review log. Per-product
// failures land in the results and the summary, never in the returned error.
func (p *Pipeline) ProcessAndPredict(ctx context.Context, filePath, productID string, horizon int, problemName models.Problem) (models.BatchOutput, error) {
	defer p.observe("batch_forecast", p.now())

	problem, err := p.problem(problemName)
	if err != nil {
		return models.BatchOutput{}, p.fail(err)
	}
	if err := p.checkHorizon(horizon); err != nil {
		return models.BatchOutput{}, p.fail(err)
	}
	path, err := p.uploadPath(filePath)
	if err != nil {
		return models.BatchOutput{}, p.fail(err)
	}
	records, _, err := ingest.ReadFile(path)
	if err != nil {
		return models.BatchOutput{}, p.fail(err)
	}
	built, err := series.Build(records, productID)
	if err != nil {
		return models.BatchOutput{}, p.fail(err)
	}

	out := models.BatchOutput{
		Status:  models.StatusSuccess,
		Problem: problem.Name,
		Results: make([]models.PipelineOutput, 0, len(built)),
		Summary: models.BatchSummary{TotalProducts: len(built), OriginalFile: filePath},
	}
	for _, id := range series.SortedIDs(built) {
		if err := ctx.Err(); err != nil {
			return models.BatchOutput{}, err
		}
		s := built[id]
		p.saveSeries(ctx, s)

		f, err := p.forecastSeries(ctx, s, horizon, problem)
		if err != nil {
			p.l.Warn("product forecast failed", applogger.String("product_id", id), applogger.Error(err))
			p.metrics.RecordError(string(errs.KindOf(err)))
			out.Results = append(out.Results, errorOutput(id, err))
			out.Summary.FailedPredictions++
			continue
		}
		out.Results = append(out.Results, models.NewPipelineOutput(f, horizon, s))
		out.Summary.SuccessfulPredictions++
	}

	p.l.Info("batch forecast done",
		applogger.String("file", filePath),
		applogger.Int("total", out.Summary.TotalProducts),
		applogger.Int("ok", out.Summary.SuccessfulPredictions),
		applogger.Int("failed", out.Summary.FailedPredictions),
	)
	return out, nil
}

// Alerts checks the latest stored forecast of a product against its threshold.
func (p *Pipeline) Alerts(ctx context.Context, productID string) (models.AlertResult, error) {
	defer p.observe("alerts", p.now())

	f, hist, err := p.latest(ctx, productID)
	if err != nil {
		return models.AlertResult{}, p.fail(err)
	}
	res, err := p.alerts.ThresholdAlerts(ctx, productID, f.Points, nil, hist)
	if err != nil {
		return models.AlertResult{}, p.fail(err)
	}

	bySeverity := map[models.Severity]int{}
	for _, a := range res.Alerts {
		bySeverity[a.Severity]++
	}
	for sev, n := range bySeverity {
		p.metrics.RecordAlerts(string(sev), n)
	}
	if len(res.Alerts) > 0 {
		p.publish(ctx, models.EventThresholdAlerts, productID, res)
	}
	return res, nil
}

// Risk scores the latest stored forecast of a product and publishes the result.
func (p *Pipeline) Risk(ctx context.Context, productID string) (models.RiskAssessment, error) {
	defer p.observe("risk", p.now())

	f, hist, err := p.latest(ctx, productID)
	if err != nil {
		return models.RiskAssessment{}, p.fail(err)
	}
	ra, err := p.alerts.RiskAssessment(ctx, productID, f.Values(), hist)
	if err != nil {
		return models.RiskAssessment{}, p.fail(err)
	}
	p.metrics.RecordRiskScore(productID, ra.RiskScore)
	p.publish(ctx, models.EventRiskAssessment, productID, ra)
	return ra, nil
}

// SetThreshold overrides the stored threshold of a product.
func (p *Pipeline) SetThreshold(ctx context.Context, productID string, value float64) (models.Threshold, error) {
	if err := p.alerts.SetThreshold(ctx, productID, value); err != nil {
		return models.Threshold{}, p.fail(err)
	}
	p.l.Info("threshold updated", applogger.String("product_id", productID), applogger.Any("threshold", value))
	return models.Threshold{ProductID: productID, Value: value, CreatedAt: p.now().UTC()}, nil
}

// LatestForecast returns the last stored forecast of a product.
func (p *Pipeline) LatestForecast(ctx context.Context, productID string) (models.PipelineOutput, error) {
	defer p.observe("latest_forecast", p.now())

	if productID == "" {
		return models.PipelineOutput{}, p.fail(errs.Invalid("product_id is required"))
	}
	f, err := p.store.LatestForecast(ctx, productID)
	if err != nil {
		return models.PipelineOutput{}, p.fail(err)
	}
	s, err := p.store.LatestSeries(ctx, productID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return models.PipelineOutput{}, p.fail(err)
	}
	return models.NewPipelineOutput(f, len(f.Points), s), nil
}

// Historical returns the stored series of a product within [start, end].
// Empty bounds are open.
func (p *Pipeline) Historical(ctx context.Context, productID, start, end string) (models.HistoricalData, error) {
	defer p.observe("historical", p.now())

	s, err := p.window(ctx, productID, start, end)
	if err != nil {
		return models.HistoricalData{}, p.fail(err)
	}
	return models.NewHistoricalData(s), nil
}

// Statistics summarizes one column of the stored series of a product.
func (p *Pipeline) Statistics(ctx context.Context, productID, target, start, end string) (models.SeriesStatistics, error) {
	defer p.observe("statistics", p.now())

	if target == "" {
		target = models.ColumnFake
	}
	if target != models.ColumnFake && target != models.ColumnTotal {
		return models.SeriesStatistics{}, p.fail(errs.Invalid("unknown target %q, expected %s or %s", target, models.ColumnFake, models.ColumnTotal))
	}
	s, err := p.window(ctx, productID, start, end)
	if err != nil {
		return models.SeriesStatistics{}, p.fail(err)
	}
	col, _ := s.Column(target)
	return models.SeriesStatistics{
		ProductID:  productID,
		Target:     target,
		DateRange:  s.Range(),
		Statistics: models.Describe(col),
	}, nil
}

// Products lists products with stored series.
func (p *Pipeline) Products(ctx context.Context) ([]string, error) {
	ids, err := p.store.ListProducts(ctx)
	if err != nil {
		return nil, p.fail(err)
	}
	return ids, nil
}

// ForecasterStatus reports the forecaster self-check, when it has one.
func (p *Pipeline) ForecasterStatus(ctx context.Context) domsvc.ForecasterStatus {
	if sr, ok := p.forecaster.(domsvc.StatusReporter); ok {
		return sr.Status(ctx)
	}
	return domsvc.ForecasterStatus{Mode: "unknown", Available: true}
}

func (p *Pipeline) forecastSeries(ctx context.Context, s models.DailySeries, horizon int, problem models.ProblemConfig) (models.ReconstructedForecast, error) {
	start := p.now()
	raw, err := p.forecaster.Invoke(ctx, models.ForecastRequest{Series: s, HorizonDays: horizon, Problem: problem})
	p.metrics.RecordLatency("forecaster_invoke", p.now().Sub(start).Seconds())
	if err != nil {
		p.metrics.RecordForecast(string(problem.Name), models.StatusError)
		return models.ReconstructedForecast{}, err
	}

	f, err := p.recon.Reconstruct(raw, s, problem.Target, horizon)
	if err != nil {
		p.metrics.RecordForecast(string(problem.Name), models.StatusError)
		return models.ReconstructedForecast{}, err
	}
	f.Problem = problem.Name
	p.metrics.RecordForecast(string(problem.Name), models.StatusSuccess)
	if f.Degraded {
		p.metrics.RecordDegraded(f.DegradedReason)
		p.l.Warn("forecast degraded",
			applogger.String("product_id", s.ProductID),
			applogger.String("reason", f.DegradedReason),
			applogger.String("invocation_id", f.InvocationID),
		)
	}

	if err := p.store.SaveForecast(ctx, f); err != nil {
		p.l.Warn("save forecast failed", applogger.String("product_id", s.ProductID), applogger.Error(err))
		p.metrics.RecordError(string(errs.KindInternal))
	}
	p.l.Info("forecast done",
		applogger.String("product_id", s.ProductID),
		applogger.String("problem", string(problem.Name)),
		applogger.Int("horizon", horizon),
		applogger.Bool("degraded", f.Degraded),
		applogger.Duration("took_ms", p.now().Sub(start)),
	)
	return f, nil
}

// latest loads the stored forecast and the history values of its target.
func (p *Pipeline) latest(ctx context.Context, productID string) (models.ReconstructedForecast, []float64, error) {
	if productID == "" {
		return models.ReconstructedForecast{}, nil, errs.Invalid("product_id is required")
	}
	f, err := p.store.LatestForecast(ctx, productID)
	if err != nil {
		return models.ReconstructedForecast{}, nil, err
	}
	s, err := p.store.LatestSeries(ctx, productID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return models.ReconstructedForecast{}, nil, err
	}
	hist, _ := s.Column(f.TargetField)
	return f, hist, nil
}

func (p *Pipeline) window(ctx context.Context, productID, start, end string) (models.DailySeries, error) {
	if productID == "" {
		return models.DailySeries{}, errs.Invalid("product_id is required")
	}
	from, err := parseBound("start", start)
	if err != nil {
		return models.DailySeries{}, err
	}
	to, err := parseBound("end", end)
	if err != nil {
		return models.DailySeries{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return models.DailySeries{}, errs.Invalid("end %s is before start %s", end, start)
	}

	s, err := p.store.LatestSeries(ctx, productID)
	if err != nil {
		return models.DailySeries{}, err
	}
	series.Sanitize(&s)
	return series.Window(s, from, to), nil
}

func parseBound(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, ok := util.ParseDay(value)
	if !ok {
		return time.Time{}, errs.Invalid("%s: unparseable date %q", name, value)
	}
	return d, nil
}

// uploadPath maps a caller supplied file_path onto a file inside the upload
// directory. Both the path returned by Upload and the bare saved name resolve.
func (p *Pipeline) uploadPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errs.Invalid("file_path is required")
	}
	root, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return "", errs.Internal("resolve upload dir", err)
	}
	root = realPath(root)

	path := name
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil && within(root, realPath(abs)) {
			path = abs
		} else {
			path = filepath.Join(root, path)
		}
	}
	path = realPath(filepath.Clean(path))
	if !within(root, path) {
		return "", errs.Invalid("file_path %q is outside the upload directory", name)
	}
	return path, nil
}

func realPath(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	return path
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (p *Pipeline) saveSeries(ctx context.Context, s models.DailySeries) {
	if err := p.store.SaveSeries(ctx, s); err != nil {
		p.l.Warn("save series failed", applogger.String("product_id", s.ProductID), applogger.Error(err))
		p.metrics.RecordError(string(errs.KindInternal))
	}
}

func (p *Pipeline) publish(ctx context.Context, typ, productID string, payload interface{}) {
	if p.pub == nil {
		return
	}
	ev := models.AlertEvent{Type: typ, ProductID: productID, At: p.now().UTC(), Payload: payload}
	if err := p.pub.Publish(ctx, ev); err != nil {
		p.l.Warn("publish alert event failed",
			applogger.String("type", typ),
			applogger.String("product_id", productID),
			applogger.Error(err),
		)
		p.metrics.RecordError("publish")
	}
}

func (p *Pipeline) problem(name models.Problem) (models.ProblemConfig, error) {
	if name == "" {
		name = models.ProblemFakeReview
	}
	cfg, ok := models.LookupProblem(name)
	if !ok {
		return models.ProblemConfig{}, errs.Invalid("unknown problem %q", name)
	}
	return cfg, nil
}

func (p *Pipeline) checkHorizon(days int) error {
	if days <= 0 || days > p.maxHorizon {
		return errs.Invalid("horizon_days must be in 1..%d, got %d", p.maxHorizon, days)
	}
	return nil
}

func (p *Pipeline) fail(err error) error {
	p.metrics.RecordError(string(errs.KindOf(err)))
	return err
}

func (p *Pipeline) observe(op string, start time.Time) {
	p.metrics.RecordLatency(op, p.now().Sub(start).Seconds())
}

func errorOutput(productID string, err error) models.PipelineOutput {
	var e *errs.Error
	if errors.As(err, &e) {
		return models.NewErrorOutput(productID, e.Code, e.Message, e.Details)
	}
	return models.NewErrorOutput(productID, errs.CodeInternal, fmt.Sprint(err), "")
}
