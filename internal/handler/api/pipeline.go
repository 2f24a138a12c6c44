package api

import (
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	"ReviewCast/internal/usecase"
	xhttp "ReviewCast/pkg/http"
	xlogger "ReviewCast/pkg/logger"
	"ReviewCast/pkg/ratelimit"

	"github.com/labstack/echo/v4"
)

// PipelineHandler exposes the review forecasting pipeline over Echo.
type PipelineHandler struct {
	logger  *xlogger.Logger
	p       *usecase.Pipeline
	limiter *ratelimit.Limiter
	started time.Time
}

func NewPipelineHandler(logger *xlogger.Logger, p *usecase.Pipeline, limiter *ratelimit.Limiter) *PipelineHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &PipelineHandler{logger: logger, p: p, limiter: limiter, started: time.Now()}
}

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/upload", h.Upload)
	g.POST("/preprocess", h.Preprocess)
	g.GET("/forecast", h.LatestForecast)
	g.POST("/forecast", h.Forecast, h.rateLimit)
	g.POST("/forecast/batch", h.BatchForecast, h.rateLimit)
	g.GET("/forecaster/status", h.ForecasterStatus)
	g.GET("/products", h.Products)
	g.GET("/data/historical", h.Historical)
	g.GET("/data/statistics", h.Statistics)
	g.GET("/alerts", h.Alerts)
	g.POST("/alerts/threshold", h.SetThreshold)
	g.GET("/alerts/risk", h.Risk)
}

func (h *PipelineHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *PipelineHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "file",
			Message: "file is required",
		}})
	}
	src, err := fh.Open()
	if err != nil {
		return h.fail(c, "upload open error", errs.Internal("open upload", err))
	}
	defer src.Close()

	info, err := h.p.Upload(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return h.fail(c, "upload error", err)
	}
	return xhttp.CreatedResponse(c, info)
}

func (h *PipelineHandler) Preprocess(c echo.Context) error {
	req := &models.PreprocessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.p.Preprocess(c.Request().Context(), req.FilePath, req.ProdID)
	if err != nil {
		return h.fail(c, "preprocess error", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineHandler) Forecast(c echo.Context) error {
	req := &models.ForecastHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.p.Forecast(c.Request().Context(), usecase.ForecastParams{
		FilePath:    req.FilePath,
		ProductID:   req.ProductID,
		HorizonDays: req.HorizonDays,
		Problem:     models.Problem(req.Problem),
	})
	if err != nil {
		return h.fail(c, "forecast error", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PipelineHandler) LatestForecast(c echo.Context) error {
	req := &models.ProductQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.p.LatestForecast(c.Request().Context(), req.ProductID)
	if err != nil {
		return h.fail(c, "latest forecast error", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PipelineHandler) BatchForecast(c echo.Context) error {
	req := &models.BatchForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.p.ProcessAndPredict(c.Request().Context(), req.FilePath, req.ProdID, req.HorizonDays, models.Problem(req.Problem))
	if err != nil {
		return h.fail(c, "batch forecast error", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PipelineHandler) ForecasterStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.p.ForecasterStatus(c.Request().Context()))
}

func (h *PipelineHandler) Products(c echo.Context) error {
	ids, err := h.p.Products(c.Request().Context())
	if err != nil {
		return h.fail(c, "list products error", err)
	}
	return xhttp.ListResponse(c, ids, int64(len(ids)))
}

func (h *PipelineHandler) Historical(c echo.Context) error {
	req := &models.SeriesWindowQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	data, err := h.p.Historical(c.Request().Context(), req.ProductID, req.Start, req.End)
	if err != nil {
		return h.fail(c, "historical data error", err)
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *PipelineHandler) Statistics(c echo.Context) error {
	req := &models.SeriesWindowQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.p.Statistics(c.Request().Context(), req.ProductID, req.Target, req.Start, req.End)
	if err != nil {
		return h.fail(c, "statistics error", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *PipelineHandler) Alerts(c echo.Context) error {
	req := &models.ProductQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.p.Alerts(c.Request().Context(), req.ProductID)
	if err != nil {
		return h.fail(c, "alerts error", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineHandler) SetThreshold(c echo.Context) error {
	req := &models.SetThresholdRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	th, err := h.p.SetThreshold(c.Request().Context(), req.ProductID, req.Threshold)
	if err != nil {
		return h.fail(c, "set threshold error", err)
	}
	return xhttp.SuccessResponse(c, th)
}

func (h *PipelineHandler) Risk(c echo.Context) error {
	req := &models.ProductQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ra, err := h.p.Risk(c.Request().Context(), req.ProductID)
	if err != nil {
		return h.fail(c, "risk error", err)
	}
	return xhttp.SuccessResponse(c, ra)
}

func (h *PipelineHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.limiter.Allow(c.RealIP()) {
			h.logger.Warn("forecast rate limited", xlogger.String("ip", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many forecast requests, retry later"))
		}
		return next(c)
	}
}

func (h *PipelineHandler) fail(c echo.Context, msg string, err error) error {
	ae := toAppError(err)
	if ae.Status >= 500 {
		h.logger.Error(msg, xlogger.String("code", ae.Code), xlogger.Error(err))
	} else {
		h.logger.Warn(msg, xlogger.String("code", ae.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, ae)
}

var _ xhttp.Handler = (*PipelineHandler)(nil)
