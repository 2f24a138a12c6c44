package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	ids     []string
	listErr error
	results map[string]error
	seen    []string
}

func (f *fakeRunner) Products(context.Context) ([]string, error) { return f.ids, f.listErr }

func (f *fakeRunner) Risk(_ context.Context, id string) (models.RiskAssessment, error) {
	f.seen = append(f.seen, id)
	if err := f.results[id]; err != nil {
		return models.RiskAssessment{}, err
	}
	return models.RiskAssessment{ProductID: id, RiskScore: 10, RiskLevel: models.RiskSafe}, nil
}

func TestRunRiskNowContinuesPastFailures(t *testing.T) {
	r := &fakeRunner{
		ids: []string{"a", "b", "c", "d"},
		results: map[string]error{
			"b": errs.NotFound("no forecast stored for %q", "b"),
			"c": errors.New("store down"),
		},
	}
	rep := New(r, time.Second, nil).RunRiskNow(context.Background())

	assert.Equal(t, []string{"a", "b", "c", "d"}, r.seen)
	assert.Equal(t, TickReport{Products: 4, Assessed: 2, Skipped: 1, Failed: 1}, rep)
}

func TestRunRiskNowListFailure(t *testing.T) {
	r := &fakeRunner{listErr: errors.New("clickhouse unreachable")}
	rep := New(r, 0, nil).RunRiskNow(context.Background())
	assert.Equal(t, TickReport{}, rep)
	assert.Empty(t, r.seen)
}

func TestRunRiskNowCanceled(t *testing.T) {
	r := &fakeRunner{ids: []string{"a", "b"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := New(r, 0, nil).RunRiskNow(ctx)
	assert.Equal(t, TickReport{Products: 2, Skipped: 2}, rep)
}

func TestRegister(t *testing.T) {
	s := New(&fakeRunner{}, 0, nil)
	require.NoError(t, s.Register("0 0 * * * *"))
	assert.Error(t, s.Register("not a cron"))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
