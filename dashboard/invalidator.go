package dashboard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
)

// ChangeKind identifies the entity family a Change refers to.
type ChangeKind string

const (
	ChangeEmployee   ChangeKind = "employee"
	ChangeQuarter    ChangeKind = "quarter"
	ChangeCoreGroup  ChangeKind = "coregroup"
	ChangeEvaluation ChangeKind = "evaluation"
	ChangeAll        ChangeKind = "all"
)

// Change describes a mutation of upstream data. For ChangeEvaluation, ID is the
// employee and QuarterID the quarter.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	ID        string     `json:"id"`
	QuarterID string     `json:"quarter_id,omitempty"`
}

// InvalidationResult reports how many entries each cache dropped.
type InvalidationResult struct {
	Removed map[string]int `json:"removed"`
	Total   int            `json:"total"`
}

func (r *InvalidationResult) add(name string, n int) {
	if r.Removed == nil {
		r.Removed = make(map[string]int)
	}
	r.Removed[name] += n
	r.Total += n
}

// Invalidator fans invalidation out across the domain caches.
//
// An id-anchored pattern is applied to every cache whose key templates can contain
// the id, and aggregates that may embed the entity are dropped wholesale.
type Invalidator struct {
	caches *Caches
	logger *zap.Logger
}

// InvalidatorOption customises an Invalidator.
type InvalidatorOption func(*Invalidator)

// WithInvalidatorLogger sets the logger.
func WithInvalidatorLogger(logger *zap.Logger) InvalidatorOption {
	return func(i *Invalidator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewInvalidator creates an Invalidator over caches.
func NewInvalidator(caches *Caches, opts ...InvalidatorOption) *Invalidator {
	i := &Invalidator{caches: caches, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.Named("invalidator")
	return i
}

type sweep struct {
	cache string
	re    *regexp.Regexp
}

// InvalidateEmployee drops every entry referencing employeeID plus the aggregates an
// employee can appear in: employee listings, per-quarter evaluation listings, core
// group data and quarter distributions.
func (i *Invalidator) InvalidateEmployee(ctx context.Context, employeeID string) (InvalidationResult, error) {
	if err := requireID("employee", employeeID); err != nil {
		return InvalidationResult{}, err
	}
	id := IDPattern(employeeID)
	return i.apply(ctx, "employee", employeeID, []sweep{
		{EmployeesCache, id},
		{EmployeesCache, prefixPattern(employeePrefix, "list")},
		{EvaluationsCache, id},
		{EvaluationsCache, prefixPattern(evaluationPrefix, "quarter")},
		{CoreGroupsCache, prefixPattern(coreGroupPrefix)},
		{ChartsCache, id},
		{ChartsCache, prefixPattern(chartPrefix, string(ChartDistribution))},
	}), nil
}

// InvalidateQuarter drops every entry referencing quarterID plus the quarter listing,
// the current quarter and the cross-quarter aggregates (per-employee evaluation
// listings and trends).
func (i *Invalidator) InvalidateQuarter(ctx context.Context, quarterID string) (InvalidationResult, error) {
	if err := requireID("quarter", quarterID); err != nil {
		return InvalidationResult{}, err
	}
	id := IDPattern(quarterID)
	return i.apply(ctx, "quarter", quarterID, []sweep{
		{QuartersCache, id},
		{QuartersCache, exactPattern(QuarterListKey())},
		{QuartersCache, exactPattern(CurrentQuarterKey())},
		{EvaluationsCache, id},
		{EvaluationsCache, prefixPattern(evaluationPrefix, "employee")},
		{CoreGroupsCache, id},
		{ChartsCache, id},
		{ChartsCache, prefixPattern(chartPrefix, string(ChartTrend))},
	}), nil
}

// InvalidateCoreGroup drops the group's analytics and members and every employee
// listing, since listings can be filtered by group.
func (i *Invalidator) InvalidateCoreGroup(ctx context.Context, groupID string) (InvalidationResult, error) {
	if err := requireID("core group", groupID); err != nil {
		return InvalidationResult{}, err
	}
	return i.apply(ctx, "coregroup", groupID, []sweep{
		{CoreGroupsCache, IDPattern(groupID)},
		{EmployeesCache, prefixPattern(employeePrefix, "list")},
	}), nil
}

// InvalidateEvaluation drops one score and everything derived from it: the employee
// and quarter listings, the employee's charts for that quarter, the trend, the quarter
// distribution and the quarter's core group analytics.
func (i *Invalidator) InvalidateEvaluation(ctx context.Context, employeeID, quarterID string) (InvalidationResult, error) {
	if err := requireID("employee", employeeID); err != nil {
		return InvalidationResult{}, err
	}
	if err := requireID("quarter", quarterID); err != nil {
		return InvalidationResult{}, err
	}
	emp, q := regexp.QuoteMeta(employeeID), regexp.QuoteMeta(quarterID)
	return i.apply(ctx, "evaluation", employeeID+"/"+quarterID, []sweep{
		{EvaluationsCache, exactPattern(EvaluationKey(employeeID, quarterID))},
		{EvaluationsCache, exactPattern(EmployeeEvaluationsKey(employeeID))},
		{EvaluationsCache, exactPattern(QuarterEvaluationsKey(quarterID))},
		{ChartsCache, regexp.MustCompile(`^chart:[^:]+:` + emp + `:` + q + `$`)},
		{ChartsCache, exactPattern(TrendKey(employeeID))},
		{ChartsCache, exactPattern(DistributionKey(quarterID))},
		{CoreGroupsCache, regexp.MustCompile(`^coregroup:[^:]+:` + q + `$`)},
	}), nil
}

// InvalidatePattern applies a caller-supplied pattern to every domain cache.
func (i *Invalidator) InvalidatePattern(ctx context.Context, pattern string) (InvalidationResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return InvalidationResult{}, errors.Wrap(err, errors.CategoryBadInput, "invalid invalidation pattern").
			WithMetadata(map[string]any{"pattern": pattern})
	}

	sweeps := make([]sweep, 0, len(i.caches.targets))
	for _, t := range i.caches.targets {
		sweeps = append(sweeps, sweep{t.Name(), re})
	}
	return i.apply(ctx, "pattern", pattern, sweeps), nil
}

// InvalidateAll clears every domain cache for every tenant.
func (i *Invalidator) InvalidateAll(ctx context.Context) InvalidationResult {
	var res InvalidationResult
	for _, t := range i.caches.targets {
		n := t.Stats().Size
		t.Clear(ctx)
		res.add(t.Name(), n)
	}
	i.logger.Info("all caches cleared", zap.Int("removed", res.Total))
	return res
}

// Handle dispatches a change event to the matching invalidation.
func (i *Invalidator) Handle(ctx context.Context, change Change) (InvalidationResult, error) {
	switch change.Kind {
	case ChangeEmployee:
		return i.InvalidateEmployee(ctx, change.ID)
	case ChangeQuarter:
		return i.InvalidateQuarter(ctx, change.ID)
	case ChangeCoreGroup:
		return i.InvalidateCoreGroup(ctx, change.ID)
	case ChangeEvaluation:
		return i.InvalidateEvaluation(ctx, change.ID, change.QuarterID)
	case ChangeAll:
		return i.InvalidateAll(ctx), nil
	default:
		return InvalidationResult{}, errors.New(fmt.Sprintf("unknown change kind %q", change.Kind), errors.CategoryBadInput).
			WithMetadata(map[string]any{"id": change.ID})
	}
}

func (i *Invalidator) apply(ctx context.Context, kind, id string, sweeps []sweep) InvalidationResult {
	var res InvalidationResult
	for _, s := range sweeps {
		t, ok := i.caches.Target(s.cache)
		if !ok {
			continue
		}
		res.add(s.cache, t.InvalidateRegexp(s.re))
	}

	i.logger.Debug("invalidated",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Int("removed", res.Total),
		zap.Any("per_cache", res.Removed),
	)
	return res
}

func requireID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New(what+" id is required", errors.CategoryBadInput)
	}
	return nil
}
