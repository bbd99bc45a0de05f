package dashboard

import (
	"context"
	"reflect"
	"slices"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
	"go.uber.org/zap/zaptest"
)

// seed fills every domain cache with entries for E1, E2, E12, Q2, Q3, G1 and G2.
func seed(ctx context.Context, t *testing.T, caches *Caches, up *upstream) {
	t.Helper()

	for _, id := range []string{"E1", "E2", "E12"} {
		caches.Employees.SetEmployee(ctx, up.employees[id])
	}
	caches.Employees.Cache().Set(ctx, EmployeeListKey(EmployeeFilter{}), []Employee{up.employees["E1"]})

	caches.Quarters.SetQuarters(ctx, up.quarters)
	caches.Quarters.Cache().Set(ctx, CurrentQuarterKey(), []Quarter{up.quarters[1]})

	for _, s := range up.evaluations {
		caches.Evaluations.SetScore(ctx, s)
	}
	caches.Evaluations.Cache().Set(ctx, EmployeeEvaluationsKey("E1"), nil)
	caches.Evaluations.Cache().Set(ctx, EmployeeEvaluationsKey("E2"), nil)
	caches.Evaluations.Cache().Set(ctx, QuarterEvaluationsKey("Q3"), nil)

	caches.CoreGroups.SetAnalytics(ctx, CoreGroupAnalytics{GroupID: "G1", QuarterID: "Q3"})
	caches.CoreGroups.SetAnalytics(ctx, CoreGroupAnalytics{GroupID: "G2", QuarterID: "Q3"})
	caches.CoreGroups.SetMembers(ctx, "G1", []string{"E1", "E2"})

	for _, id := range []string{"E1", "E2", "E12"} {
		caches.Charts.SetChart(ctx, ChartData{Kind: ChartRadar, EmployeeID: id, QuarterID: "Q3"})
	}
	caches.Charts.Cache().Set(ctx, TrendKey("E1"), ChartData{Kind: ChartTrend})
	caches.Charts.Cache().Set(ctx, TrendKey("E2"), ChartData{Kind: ChartTrend})
	caches.Charts.Cache().Set(ctx, DistributionKey("Q3"), ChartData{Kind: ChartDistribution})
}

func allKeys(ctx context.Context, caches *Caches) map[string][]string {
	out := make(map[string][]string)
	for _, target := range caches.Targets() {
		out[target.Name()] = target.Keys(ctx)
	}
	return out
}

func setup(t *testing.T) (*Caches, *Invalidator, context.Context, context.Context) {
	t.Helper()
	up := loadUpstream(t)
	caches := newTestCaches(t)
	inv := NewInvalidator(caches, WithInvalidatorLogger(zaptest.NewLogger(t)))

	acme := cache.WithTenant(context.Background(), "acme")
	globex := cache.WithTenant(context.Background(), "globex")
	seed(acme, t, caches, up)
	seed(globex, t, caches, up)
	return caches, inv, acme, globex
}

func assertRemoved(t *testing.T, got, want map[string]int) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Removed = %v, want %v", got, want)
	}
}

func assertKeys(t *testing.T, name string, got []string, want ...string) {
	t.Helper()
	got = slices.Clone(got)
	slices.Sort(got)
	slices.Sort(want)
	if len(got) != len(want) || !slices.Equal(got, want) {
		t.Errorf("%s keys = %v, want %v", name, got, want)
	}
}

func TestInvalidator_Employee(t *testing.T) {
	caches, inv, acme, globex := setup(t)

	res, err := inv.InvalidateEmployee(acme, "E1")
	if err != nil {
		t.Fatalf("InvalidateEmployee() error = %v", err)
	}

	// Both tenants are swept: patterns match logical keys.
	assertRemoved(t, res.Removed, map[string]int{
		EmployeesCache:   4,
		EvaluationsCache: 8,
		CoreGroupsCache:  6,
		ChartsCache:      6,
	})
	if res.Total != 24 {
		t.Errorf("Total = %d, want 24", res.Total)
	}

	re := IDPattern("E1")
	for _, ctx := range []context.Context{acme, globex} {
		for name, keys := range allKeys(ctx, caches) {
			for _, key := range keys {
				if re.MatchString(key) {
					t.Errorf("%s still holds %s", name, key)
				}
			}
		}
	}

	// Unrelated entries survive, including the lookalike E12.
	if _, ok := caches.Employees.PeekEmployee(acme, "E12"); !ok {
		t.Error("E12 must survive")
	}
	if _, ok := caches.Evaluations.PeekScore(globex, "E2", "Q3"); !ok {
		t.Error("E2 score must survive")
	}
	if !caches.Charts.Cache().Has(acme, TrendKey("E2")) {
		t.Error("E2 trend must survive")
	}
	if n := len(caches.Quarters.Cache().(Target).Keys(acme)); n != 4 {
		t.Errorf("quarter keys = %d, want 4", n)
	}
}

func TestInvalidator_Quarter(t *testing.T) {
	caches, inv, acme, _ := setup(t)

	res, err := inv.InvalidateQuarter(acme, "Q3")
	if err != nil {
		t.Fatalf("InvalidateQuarter() error = %v", err)
	}
	assertRemoved(t, res.Removed, map[string]int{
		QuartersCache:    6,
		EvaluationsCache: 12,
		CoreGroupsCache:  4,
		ChartsCache:      12,
	})

	assertKeys(t, QuartersCache, caches.Quarters.Cache().(Target).Keys(acme), "quarter:Q2")
	assertKeys(t, EvaluationsCache, caches.Evaluations.Cache().(Target).Keys(acme), "evaluation:E1:Q2")
	assertKeys(t, CoreGroupsCache, caches.CoreGroups.Cache().(Target).Keys(acme), "coregroup:members:G1")
	assertKeys(t, ChartsCache, caches.Charts.Cache().(Target).Keys(acme))
	if n := len(caches.Employees.Cache().(Target).Keys(acme)); n != 4 {
		t.Errorf("employee keys = %d, want 4: employee data does not embed quarters", n)
	}
}

func TestInvalidator_Evaluation(t *testing.T) {
	caches, inv, acme, _ := setup(t)

	res, err := inv.Handle(acme, Change{Kind: ChangeEvaluation, ID: "E1", QuarterID: "Q3"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Total != 16 {
		t.Errorf("Total = %d, want 16", res.Total)
	}

	if _, ok := caches.Evaluations.PeekScore(acme, "E1", "Q3"); ok {
		t.Error("E1/Q3 score should be gone")
	}
	if _, ok := caches.Evaluations.PeekScore(acme, "E1", "Q2"); !ok {
		t.Error("other quarters of the employee survive")
	}
	if !caches.Charts.Cache().Has(acme, ChartKey(ChartRadar, "E2", "Q3")) {
		t.Error("E2 radar chart must survive")
	}
	if !caches.CoreGroups.Cache().Has(acme, CoreGroupMembersKey("G1")) {
		t.Error("G1 members must survive")
	}
	if caches.CoreGroups.Cache().Has(acme, CoreGroupKey("G2", "Q3")) {
		t.Error("Q3 core group analytics should be gone")
	}
}

func TestInvalidator_CoreGroup(t *testing.T) {
	caches, inv, acme, _ := setup(t)

	res, err := inv.InvalidateCoreGroup(acme, "G1")
	if err != nil {
		t.Fatalf("InvalidateCoreGroup() error = %v", err)
	}
	assertRemoved(t, res.Removed, map[string]int{CoreGroupsCache: 4, EmployeesCache: 2})
	if !caches.CoreGroups.Cache().Has(acme, CoreGroupKey("G2", "Q3")) {
		t.Error("G2 analytics must survive")
	}
}

func TestInvalidator_PatternAndAll(t *testing.T) {
	caches, inv, acme, globex := setup(t)

	res, err := inv.InvalidatePattern(acme, `^chart:trend:`)
	if err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}
	if res.Total != 4 || res.Removed[ChartsCache] != 4 {
		t.Errorf("result = %+v, want 4 chart entries", res)
	}

	_, err = inv.InvalidatePattern(acme, "(")
	if !errors.IsCategory(err, errors.CategoryBadInput) {
		t.Errorf("InvalidatePattern(\"(\") error = %v, want bad input", err)
	}

	before := 0
	for _, st := range caches.Stats() {
		before += st.Size
	}
	all := inv.InvalidateAll(acme)
	if all.Total != before {
		t.Errorf("InvalidateAll() Total = %d, want %d", all.Total, before)
	}
	for _, ctx := range []context.Context{acme, globex} {
		for name, keys := range allKeys(ctx, caches) {
			if len(keys) != 0 {
				t.Errorf("%s still holds %v", name, keys)
			}
		}
	}
}

func TestInvalidator_Handle(t *testing.T) {
	_, inv, acme, _ := setup(t)

	tests := []struct {
		name    string
		change  Change
		wantErr bool
	}{
		{name: "employee", change: Change{Kind: ChangeEmployee, ID: "E2"}},
		{name: "quarter", change: Change{Kind: ChangeQuarter, ID: "Q2"}},
		{name: "core group", change: Change{Kind: ChangeCoreGroup, ID: "G2"}},
		{name: "all", change: Change{Kind: ChangeAll}},
		{name: "missing id", change: Change{Kind: ChangeEmployee}, wantErr: true},
		{name: "evaluation without quarter", change: Change{Kind: ChangeEvaluation, ID: "E1"}, wantErr: true},
		{name: "unknown kind", change: Change{Kind: "department", ID: "D1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.Handle(acme, tt.change)
			if tt.wantErr {
				if !errors.IsCategory(err, errors.CategoryBadInput) {
					t.Errorf("Handle() error = %v, want bad input", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Handle() error = %v", err)
			}
		})
	}
}

func TestInvalidator_IDWithRegexMetacharacters(t *testing.T) {
	ctx := cache.WithTenant(context.Background(), "acme")
	caches := newTestCaches(t)
	inv := NewInvalidator(caches)

	caches.Employees.SetEmployee(ctx, Employee{ID: "a.b"})
	caches.Employees.SetEmployee(ctx, Employee{ID: "axb"})

	res, err := inv.InvalidateEmployee(ctx, "a.b")
	if err != nil {
		t.Fatalf("InvalidateEmployee() error = %v", err)
	}
	if res.Removed[EmployeesCache] != 1 {
		t.Errorf("removed = %d, want 1", res.Removed[EmployeesCache])
	}
	if _, ok := caches.Employees.PeekEmployee(ctx, "axb"); !ok {
		t.Error("axb must survive")
	}
}
