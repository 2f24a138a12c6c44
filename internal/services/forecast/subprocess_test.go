package forecast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "REVIEWCAST_FORECAST_HELPER=1"

// TestHelperProcess stands in for the model when re-executed by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("REVIEWCAST_FORECAST_HELPER") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: -- mode result_dir data_file")
		os.Exit(2)
	}
	mode, resDir, dataFile := args[1], args[2], args[3]

	writeResult := func(sub string) {
		dir := filepath.Join(resDir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if err := WriteNPYFile(filepath.Join(dir, DefaultResultFile), []float64{0.1, 0.5, 0.9}, []int{1, 3, 1}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	switch mode {
	case "ok":
		b, err := os.ReadFile(dataFile)
		if err != nil || !strings.HasPrefix(string(b), "date,total,fake\n") {
			fmt.Fprintln(os.Stderr, "unexpected input table")
			os.Exit(2)
		}
		writeResult("informer_custom_ftMS")
	case "fail":
		fmt.Fprint(os.Stderr, "RuntimeError: CUDA out of memory")
		os.Exit(3)
	case "none":
	case "two":
		writeResult("run_a")
		writeResult("run_b")
	case "sleep":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperForecaster(t *testing.T, mode string, opts ...SubprocessOption) (*SubprocessForecaster, string) {
	t.Helper()
	work := t.TempDir()
	opts = append([]SubprocessOption{WithEnv(helperEnv)}, opts...)
	f := NewSubprocessForecaster(os.Args[0],
		[]string{"-test.run=TestHelperProcess", "--", mode, "{result_dir}", "{data_file}"},
		work, opts...)
	return f, work
}

func helperRequest(t *testing.T) models.ForecastRequest {
	return models.ForecastRequest{Series: series("p1", 1, 2, 3, 4), HorizonDays: 3, Problem: fakeReview(t)}
}

func TestSubprocessSuccess(t *testing.T) {
	f, work := helperForecaster(t, "ok")
	f.newID = func() string { return "inv-1" }

	raw, err := f.Invoke(context.Background(), helperRequest(t))
	require.NoError(t, err)
	assert.Equal(t, models.Batch{B: 1, T: 3, F: 1}, raw.Shape)
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, raw.Data)
	assert.Equal(t, 0, raw.FeatureIndex)
	assert.Equal(t, "inv-1", raw.InvocationID)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "artifacts are removed after the run")
}

func TestSubprocessKeepArtifacts(t *testing.T) {
	f, work := helperForecaster(t, "ok", WithKeepArtifacts(true))
	f.newID = func() string { return "kept" }

	_, err := f.Invoke(context.Background(), helperRequest(t))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(work, "kept", inputFile))
	assert.NoError(t, err)
}

func TestSubprocessFailureCarriesStderr(t *testing.T) {
	f, _ := helperForecaster(t, "fail")
	_, err := f.Invoke(context.Background(), helperRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrForecastFailed))
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestSubprocessResultNotFound(t *testing.T) {
	f, _ := helperForecaster(t, "none")
	_, err := f.Invoke(context.Background(), helperRequest(t))
	assert.True(t, errors.Is(err, errs.ErrResultNotFound))
}

func TestSubprocessResultAmbiguous(t *testing.T) {
	f, _ := helperForecaster(t, "two")
	_, err := f.Invoke(context.Background(), helperRequest(t))
	assert.True(t, errors.Is(err, errs.ErrResultAmbiguous))
}

func TestSubprocessTimeout(t *testing.T) {
	f, _ := helperForecaster(t, "sleep", WithTimeout(300*time.Millisecond))
	start := time.Now()
	_, err := f.Invoke(context.Background(), helperRequest(t))
	assert.True(t, errors.Is(err, errs.ErrForecastTimeout))
	assert.Less(t, time.Since(start), 20*time.Second)
}

func TestSubprocessRejectsShortHistory(t *testing.T) {
	f, work := helperForecaster(t, "ok", WithMinHistory(10))
	_, err := f.Invoke(context.Background(), helperRequest(t))
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	entries, _ := os.ReadDir(work)
	assert.Empty(t, entries)
}

func TestSubprocessStatus(t *testing.T) {
	f, _ := helperForecaster(t, "ok")
	st := f.Status(context.Background())
	assert.True(t, st.Available)
	assert.True(t, st.Checks["command"])
	assert.True(t, st.Checks["work_dir"])

	missing := NewSubprocessForecaster("definitely-not-a-real-binary-xyz", nil, t.TempDir())
	st = missing.Status(context.Background())
	assert.False(t, st.Available)
	assert.False(t, st.Checks["command"])
}
