package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-smartcache/cache"
	"github.com/goliatone/go-smartcache/pkg/testsupport"
	"go.uber.org/zap/zaptest"
)

var testEpoch = time.Date(2024, 9, 30, 12, 0, 0, 0, time.UTC)

// upstream is a fixture-backed data source that counts every call.
type upstream struct {
	employees   map[string]Employee
	quarters    []Quarter
	evaluations map[string]EvaluationScore

	mu    sync.Mutex
	calls map[string]int
	fail  atomic.Bool
}

func loadUpstream(t *testing.T) *upstream {
	t.Helper()

	var employees []Employee
	var quarters []Quarter
	var scores []EvaluationScore
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("employees.json"), &employees)
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("quarters.json"), &quarters)
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("evaluations.json"), &scores)

	u := &upstream{
		employees:   make(map[string]Employee),
		quarters:    quarters,
		evaluations: make(map[string]EvaluationScore),
		calls:       make(map[string]int),
	}
	for _, e := range employees {
		u.employees[e.ID] = e
	}
	for _, s := range scores {
		u.evaluations[EvaluationKey(s.EmployeeID, s.QuarterID)] = s
	}
	return u
}

func (u *upstream) record(call string) error {
	u.mu.Lock()
	u.calls[call]++
	u.mu.Unlock()
	if u.fail.Load() {
		return errUpstream
	}
	return nil
}

func (u *upstream) Calls(call string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[call]
}

func (u *upstream) employee(id string) cache.FetchFn[Employee] {
	return func(context.Context) (Employee, error) {
		if err := u.record("employee:" + id); err != nil {
			return Employee{}, err
		}
		return u.employees[id], nil
	}
}

func (u *upstream) list(filter EmployeeFilter) cache.FetchFn[[]Employee] {
	return func(context.Context) ([]Employee, error) {
		if err := u.record("employees"); err != nil {
			return nil, err
		}
		var out []Employee
		for _, e := range u.employees {
			if filter.Match(e) {
				out = append(out, e)
			}
		}
		return out, nil
	}
}

func (u *upstream) score(ctx context.Context, employeeID, quarterID string) (EvaluationScore, error) {
	if err := u.record("score:" + employeeID + ":" + quarterID); err != nil {
		return EvaluationScore{}, err
	}
	return u.evaluations[EvaluationKey(employeeID, quarterID)], nil
}

func (u *upstream) scoreFn(employeeID, quarterID string) cache.FetchFn[EvaluationScore] {
	return func(ctx context.Context) (EvaluationScore, error) {
		return u.score(ctx, employeeID, quarterID)
	}
}

type upstreamError struct{}

func (upstreamError) Error() string { return "upstream unavailable" }

var errUpstream error = upstreamError{}

func newTestCaches(t *testing.T, opts ...cache.Option) *Caches {
	t.Helper()
	cfg := DefaultConfig().Each(func(c *cache.Config) { c.CleanupInterval = 0 })
	opts = append([]cache.Option{cache.WithLogger(zaptest.NewLogger(t))}, opts...)

	caches, err := NewCaches(cfg, opts...)
	if err != nil {
		t.Fatalf("NewCaches() error = %v", err)
	}
	t.Cleanup(func() { _ = caches.Close(context.Background()) })
	return caches
}
