package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ReviewCast/internal/domain/errs"

	"github.com/stretchr/testify/assert"
)

func TestToAppError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errs.Invalid("bad horizon %d", 0), http.StatusBadRequest, errs.CodeInvalidInput},
		{"not found", fmt.Errorf("load: %w", errs.NotFound("no series for %q", "p1")), http.StatusNotFound, errs.CodeNotFound},
		{"upstream", errs.ForecastFailed("exit 1", nil), http.StatusBadGateway, errs.CodeForecastFailed},
		{"timeout", errs.ForecastTimeout(context.DeadlineExceeded), http.StatusGatewayTimeout, errs.CodeForecastTimeout},
		{"internal", errs.Internal("store", errors.New("disk")), http.StatusInternalServerError, errs.CodeInternal},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := toAppError(tc.err)
			assert.Equal(t, tc.status, ae.Status)
			assert.Equal(t, tc.code, ae.Code)
		})
	}
}

func TestToAppErrorDetails(t *testing.T) {
	ae := toAppError(errs.ForecastFailed("traceback: division by zero", nil))
	assert.Equal(t, "traceback: division by zero", ae.Params["details"])

	ae = toAppError(errs.Invalid("file_path is required"))
	assert.Empty(t, ae.Params)
}
