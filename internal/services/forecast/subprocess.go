package forecast

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domsvc "ReviewCast/internal/domain/service"
	applogger "ReviewCast/pkg/logger"

	"github.com/google/uuid"
)

const (
	// ModeSubprocess runs the model as a child process.
	ModeSubprocess = "subprocess"

	DefaultResultFile = "real_prediction.npy"
	DefaultTimeout    = 10 * time.Minute

	inputFile  = "input.csv"
	resultsDir = "results"
)

// SubprocessForecaster runs the model as a command per invocation. Every run
// gets its own directory under workDir holding the input table and results.
type SubprocessForecaster struct {
	command    string
	args       []string
	workDir    string
	dir        string
	env        []string
	resultFile string
	timeout    time.Duration
	keep       bool
	minHistory int
	newID      func() string
	l          *applogger.Logger
}

// SubprocessOption configures a SubprocessForecaster.
type SubprocessOption func(*SubprocessForecaster)

// WithTimeout bounds a single invocation.
func WithTimeout(d time.Duration) SubprocessOption {
	return func(f *SubprocessForecaster) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithResultFile sets the artifact name searched for under results/.
func WithResultFile(name string) SubprocessOption {
	return func(f *SubprocessForecaster) {
		if name != "" {
			f.resultFile = name
		}
	}
}

// WithKeepArtifacts leaves invocation directories on disk.
func WithKeepArtifacts(keep bool) SubprocessOption {
	return func(f *SubprocessForecaster) { f.keep = keep }
}

// WithMinHistory rejects shorter series before invoking the model.
func WithMinHistory(n int) SubprocessOption {
	return func(f *SubprocessForecaster) {
		if n > 0 {
			f.minHistory = n
		}
	}
}

// WithCommandDir runs the command from dir instead of the invocation directory.
func WithCommandDir(dir string) SubprocessOption {
	return func(f *SubprocessForecaster) { f.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) SubprocessOption {
	return func(f *SubprocessForecaster) { f.env = append(f.env, env...) }
}

// NewSubprocessForecaster builds a forecaster around command and its argument
// template. Placeholders such as {root_path} and {pred_len} are expanded per run.
func NewSubprocessForecaster(command string, args []string, workDir string, opts ...SubprocessOption) *SubprocessForecaster {
	f := &SubprocessForecaster{
		command:    command,
		args:       append([]string(nil), args...),
		workDir:    workDir,
		resultFile: DefaultResultFile,
		timeout:    DefaultTimeout,
		minHistory: DefaultMinHistory,
		newID:      func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// SetLogger injects a structured logger.
func (f *SubprocessForecaster) SetLogger(l *applogger.Logger) { f.l = l }

func (f *SubprocessForecaster) Invoke(ctx context.Context, req models.ForecastRequest) (models.RawForecastTensor, error) {
	if err := validateRequest(req, f.minHistory); err != nil {
		return models.RawForecastTensor{}, err
	}

	id := f.newID()
	root := filepath.Join(f.workDir, id)
	resDir := filepath.Join(root, resultsDir)
	if err := os.MkdirAll(resDir, 0o755); err != nil {
		return models.RawForecastTensor{}, errs.Internal("create invocation directory", err)
	}
	if !f.keep {
		defer os.RemoveAll(root)
	}

	if err := f.writeInput(filepath.Join(root, inputFile), req); err != nil {
		return models.RawForecastTensor{}, err
	}

	args := ExpandArgs(f.args, placeholders(req, root, resDir))
	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.command, args...)
	cmd.Dir = root
	if f.dir != "" {
		cmd.Dir = f.dir
	}
	if len(f.env) > 0 {
		cmd.Env = append(os.Environ(), f.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)
	cmd.WaitDelay = time.Second

	start := time.Now()
	if f.l != nil {
		f.l.Info("forecaster invocation started",
			applogger.String("invocation_id", id),
			applogger.String("product_id", req.Series.ProductID),
			applogger.String("command", f.command),
			applogger.Strings("args", args),
		)
	}
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			f.logFailure(id, "timeout", elapsed, runErr, "")
			return models.RawForecastTensor{}, errs.ForecastTimeout(runErr)
		}
		if ctx.Err() != nil {
			return models.RawForecastTensor{}, errs.ForecastFailed("invocation canceled", ctx.Err())
		}
		details := strings.TrimSpace(stderr.String())
		f.logFailure(id, "exit", elapsed, runErr, details)
		return models.RawForecastTensor{}, errs.ForecastFailed(details, runErr)
	}

	path, err := findResult(resDir, f.resultFile)
	if err != nil {
		f.logFailure(id, "result", elapsed, err, "")
		return models.RawForecastTensor{}, err
	}
	data, dims, err := ReadNPYFile(path)
	if err != nil {
		return models.RawForecastTensor{}, errs.ForecastFailed("decode "+filepath.Base(path), err)
	}
	shape, err := tensorShape(dims, len(data))
	if err != nil {
		f.logFailure(id, "shape", elapsed, err, "")
		return models.RawForecastTensor{}, err
	}

	if f.l != nil {
		f.l.Info("forecaster invocation finished",
			applogger.String("invocation_id", id),
			applogger.String("product_id", req.Series.ProductID),
			applogger.Any("shape", dims),
			applogger.Duration("duration_ms", elapsed),
		)
	}
	return models.RawForecastTensor{
		Data:         data,
		Shape:        shape,
		FeatureIndex: channelFor(req.Problem, shape),
		InvocationID: id,
	}, nil
}

// Status checks that the command resolves and the work directory is writable.
func (f *SubprocessForecaster) Status(_ context.Context) domsvc.ForecasterStatus {
	st := domsvc.ForecasterStatus{
		Mode:    ModeSubprocess,
		Checks:  map[string]bool{},
		Details: map[string]string{"command": f.command, "work_dir": f.workDir},
	}

	if p, err := exec.LookPath(f.command); err == nil {
		st.Checks["command"] = true
		st.Details["command_path"] = p
	} else {
		st.Checks["command"] = false
		st.Details["command_error"] = err.Error()
	}

	st.Checks["work_dir"] = false
	if err := os.MkdirAll(f.workDir, 0o755); err != nil {
		st.Details["work_dir_error"] = err.Error()
	} else if tmp, err := os.CreateTemp(f.workDir, ".probe-*"); err != nil {
		st.Details["work_dir_error"] = err.Error()
	} else {
		tmp.Close()
		os.Remove(tmp.Name())
		st.Checks["work_dir"] = true
	}

	if f.dir != "" {
		info, err := os.Stat(f.dir)
		st.Checks["command_dir"] = err == nil && info.IsDir()
	}

	st.Available = true
	for _, ok := range st.Checks {
		st.Available = st.Available && ok
	}
	return st
}

func (f *SubprocessForecaster) writeInput(path string, req models.ForecastRequest) error {
	file, err := os.Create(path)
	if err != nil {
		return errs.Internal("create input table", err)
	}
	if err := EncodeCSV(file, req.Series, req.Problem); err != nil {
		file.Close()
		var de *errs.Error
		if errors.As(err, &de) {
			return err
		}
		return errs.Internal("write input table", err)
	}
	if err := file.Close(); err != nil {
		return errs.Internal("write input table", err)
	}
	return nil
}

func (f *SubprocessForecaster) logFailure(id, stage string, elapsed time.Duration, err error, stderr string) {
	if f.l == nil {
		return
	}
	f.l.Error("forecaster invocation failed",
		applogger.String("invocation_id", id),
		applogger.String("stage", stage),
		applogger.String("stderr", stderr),
		applogger.Duration("duration_ms", elapsed),
		applogger.Error(err),
	)
}

func placeholders(req models.ForecastRequest, root, resDir string) map[string]string {
	return map[string]string{
		"root_path":     root,
		"data_path":     inputFile,
		"data_file":     filepath.Join(root, inputFile),
		"result_dir":    resDir,
		"target":        req.Problem.Target,
		"features":      req.Problem.Mode,
		"columns":       strings.Join(req.Problem.Features, ","),
		"enc_in":        strconv.Itoa(req.Problem.EncIn),
		"dec_in":        strconv.Itoa(req.Problem.DecIn),
		"c_out":         strconv.Itoa(req.Problem.COut),
		"pred_len":      strconv.Itoa(req.HorizonDays),
		"product_id":    req.Series.ProductID,
		"invocation_id": filepath.Base(root),
	}
}

// ExpandArgs substitutes {name} placeholders in each argument.
func ExpandArgs(tmpl []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// findResult returns the single artifact named name under dir.
func findResult(dir, name string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", errs.ForecastFailed("scan results", err)
	}
	switch len(matches) {
	case 0:
		return "", errs.ResultNotFound(dir)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", errs.ResultAmbiguous(matches)
	}
}

var (
	_ domsvc.Forecaster     = (*SubprocessForecaster)(nil)
	_ domsvc.StatusReporter = (*SubprocessForecaster)(nil)
)
