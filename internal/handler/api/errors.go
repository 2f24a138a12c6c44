package api

import (
	"errors"
	"net/http"

	"ReviewCast/internal/domain/errs"
	xhttp "ReviewCast/pkg/http"
)

// toAppError maps a domain error onto the transport error envelope.
func toAppError(err error) *xhttp.AppError {
	var e *errs.Error
	if !errors.As(err, &e) {
		return xhttp.InternalError("internal error").WithError(err)
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindUpstream:
		status = http.StatusBadGateway
		if e.Code == errs.CodeForecastTimeout {
			status = http.StatusGatewayTimeout
		}
	}

	ae := xhttp.NewAppError(e.Code, "", e.Message, status).WithError(e.Err)
	if e.Details != "" {
		ae.WithParam("details", e.Details)
	}
	return ae
}
