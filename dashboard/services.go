package dashboard

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-smartcache/cache"
)

// Slice-valued domain caches hold single records as one-element slices so that a
// record and its listings share one SmartCache.

func getOne[T any](ctx context.Context, c cache.Service[[]T], key string, fetch cache.FetchFn[T], ttl ...time.Duration) (T, error) {
	var zero T
	if fetch == nil {
		return zero, errors.New("fetch function is required", errors.CategoryBadInput)
	}

	list, err := c.GetOrFetch(ctx, key, func(ctx context.Context) ([]T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	}, ttl...)
	if err != nil {
		return zero, err
	}

	if len(list) == 0 {
		return zero, errors.New("cached record is empty", errors.CategoryNotFound).
			WithMetadata(map[string]any{"key": key, "cache": c.Name()})
	}
	return list[0], nil
}

func peekOne[T any](ctx context.Context, c cache.Service[[]T], key string) (T, bool) {
	var zero T
	list, ok := c.Get(ctx, key)
	if !ok || len(list) == 0 {
		return zero, false
	}
	return list[0], true
}

// EmployeeCache caches employee records and filtered listings.
type EmployeeCache struct {
	c cache.Service[[]Employee]
}

// NewEmployeeCache wraps c.
func NewEmployeeCache(c cache.Service[[]Employee]) *EmployeeCache {
	return &EmployeeCache{c: c}
}

// GetEmployee returns employee:{id}, fetching on miss.
func (s *EmployeeCache) GetEmployee(ctx context.Context, id string, fetch cache.FetchFn[Employee]) (Employee, error) {
	return getOne(ctx, s.c, EmployeeKey(id), fetch)
}

// PeekEmployee returns employee:{id} without fetching.
func (s *EmployeeCache) PeekEmployee(ctx context.Context, id string) (Employee, bool) {
	return peekOne(ctx, s.c, EmployeeKey(id))
}

// SetEmployee writes a record through to the cache.
func (s *EmployeeCache) SetEmployee(ctx context.Context, e Employee) {
	s.c.Set(ctx, EmployeeKey(e.ID), []Employee{e})
}

// GetEmployees returns employee:list:{filter}, fetching on miss.
func (s *EmployeeCache) GetEmployees(ctx context.Context, filter EmployeeFilter, fetch cache.FetchFn[[]Employee]) ([]Employee, error) {
	return s.c.GetOrFetch(ctx, EmployeeListKey(filter), fetch)
}

// SetEmployees writes a listing through to the cache and primes each record.
func (s *EmployeeCache) SetEmployees(ctx context.Context, filter EmployeeFilter, list []Employee) {
	s.c.Set(ctx, EmployeeListKey(filter), list)
	for _, e := range list {
		s.SetEmployee(ctx, e)
	}
}

// Stats reports the underlying cache statistics.
func (s *EmployeeCache) Stats() cache.Stats { return s.c.Stats() }

// Cache exposes the underlying cache.
func (s *EmployeeCache) Cache() cache.Service[[]Employee] { return s.c }

// QuarterCache caches quarters, the quarter listing and the current quarter.
type QuarterCache struct {
	c cache.Service[[]Quarter]
}

// NewQuarterCache wraps c.
func NewQuarterCache(c cache.Service[[]Quarter]) *QuarterCache {
	return &QuarterCache{c: c}
}

// GetQuarter returns quarter:{id}, fetching on miss.
func (s *QuarterCache) GetQuarter(ctx context.Context, id string, fetch cache.FetchFn[Quarter]) (Quarter, error) {
	return getOne(ctx, s.c, QuarterKey(id), fetch)
}

// SetQuarter writes a quarter through to the cache.
func (s *QuarterCache) SetQuarter(ctx context.Context, q Quarter) {
	s.c.Set(ctx, QuarterKey(q.ID), []Quarter{q})
}

// GetQuarters returns quarter:list, fetching on miss.
func (s *QuarterCache) GetQuarters(ctx context.Context, fetch cache.FetchFn[[]Quarter]) ([]Quarter, error) {
	return s.c.GetOrFetch(ctx, QuarterListKey(), fetch)
}

// SetQuarters writes the listing through and primes each quarter.
func (s *QuarterCache) SetQuarters(ctx context.Context, list []Quarter) {
	s.c.Set(ctx, QuarterListKey(), list)
	for _, q := range list {
		s.SetQuarter(ctx, q)
	}
}

// GetCurrentQuarter returns quarter:current, fetching on miss. It expires sooner than
// other quarter keys because the current quarter rolls over.
func (s *QuarterCache) GetCurrentQuarter(ctx context.Context, fetch cache.FetchFn[Quarter]) (Quarter, error) {
	return getOne(ctx, s.c, CurrentQuarterKey(), fetch, CurrentQuarterTTL)
}

// Stats reports the underlying cache statistics.
func (s *QuarterCache) Stats() cache.Stats { return s.c.Stats() }

// Cache exposes the underlying cache.
func (s *QuarterCache) Cache() cache.Service[[]Quarter] { return s.c }

// EvaluationCache caches evaluation scores per employee and quarter plus the
// per-employee and per-quarter listings.
type EvaluationCache struct {
	c cache.Service[[]EvaluationScore]
}

// NewEvaluationCache wraps c.
func NewEvaluationCache(c cache.Service[[]EvaluationScore]) *EvaluationCache {
	return &EvaluationCache{c: c}
}

// GetScore returns evaluation:{employeeID}:{quarterID}, fetching on miss.
func (s *EvaluationCache) GetScore(ctx context.Context, employeeID, quarterID string, fetch cache.FetchFn[EvaluationScore]) (EvaluationScore, error) {
	return getOne(ctx, s.c, EvaluationKey(employeeID, quarterID), fetch)
}

// PeekScore returns a cached score without fetching.
func (s *EvaluationCache) PeekScore(ctx context.Context, employeeID, quarterID string) (EvaluationScore, bool) {
	return peekOne(ctx, s.c, EvaluationKey(employeeID, quarterID))
}

// SetScore writes a score through to the cache.
func (s *EvaluationCache) SetScore(ctx context.Context, score EvaluationScore) {
	s.c.Set(ctx, EvaluationKey(score.EmployeeID, score.QuarterID), []EvaluationScore{score})
}

// GetEmployeeScores returns evaluation:employee:{employeeID}, fetching on miss.
func (s *EvaluationCache) GetEmployeeScores(ctx context.Context, employeeID string, fetch cache.FetchFn[[]EvaluationScore]) ([]EvaluationScore, error) {
	return s.c.GetOrFetch(ctx, EmployeeEvaluationsKey(employeeID), fetch)
}

// GetQuarterScores returns evaluation:quarter:{quarterID}, fetching on miss.
func (s *EvaluationCache) GetQuarterScores(ctx context.Context, quarterID string, fetch cache.FetchFn[[]EvaluationScore]) ([]EvaluationScore, error) {
	return s.c.GetOrFetch(ctx, QuarterEvaluationsKey(quarterID), fetch)
}

// Stats reports the underlying cache statistics.
func (s *EvaluationCache) Stats() cache.Stats { return s.c.Stats() }

// Cache exposes the underlying cache.
func (s *EvaluationCache) Cache() cache.Service[[]EvaluationScore] { return s.c }

// CoreGroupCache caches core group analytics and member listings.
type CoreGroupCache struct {
	c cache.Service[CoreGroupAnalytics]
}

// NewCoreGroupCache wraps c.
func NewCoreGroupCache(c cache.Service[CoreGroupAnalytics]) *CoreGroupCache {
	return &CoreGroupCache{c: c}
}

// GetAnalytics returns coregroup:{groupID}:{quarterID}, fetching on miss.
func (s *CoreGroupCache) GetAnalytics(ctx context.Context, groupID, quarterID string, fetch cache.FetchFn[CoreGroupAnalytics]) (CoreGroupAnalytics, error) {
	return s.c.GetOrFetch(ctx, CoreGroupKey(groupID, quarterID), fetch)
}

// SetAnalytics writes analytics through to the cache.
func (s *CoreGroupCache) SetAnalytics(ctx context.Context, a CoreGroupAnalytics) {
	s.c.Set(ctx, CoreGroupKey(a.GroupID, a.QuarterID), a)
}

// GetMembers returns the member ids cached under coregroup:members:{groupID}.
func (s *CoreGroupCache) GetMembers(ctx context.Context, groupID string, fetch cache.FetchFn[[]string]) ([]string, error) {
	if fetch == nil {
		return nil, errors.New("fetch function is required", errors.CategoryBadInput)
	}
	a, err := s.c.GetOrFetch(ctx, CoreGroupMembersKey(groupID), func(ctx context.Context) (CoreGroupAnalytics, error) {
		ids, err := fetch(ctx)
		if err != nil {
			return CoreGroupAnalytics{}, err
		}
		return CoreGroupAnalytics{GroupID: groupID, MemberIDs: ids}, nil
	})
	if err != nil {
		return nil, err
	}
	return a.MemberIDs, nil
}

// SetMembers writes a member listing through to the cache.
func (s *CoreGroupCache) SetMembers(ctx context.Context, groupID string, memberIDs []string) {
	s.c.Set(ctx, CoreGroupMembersKey(groupID), CoreGroupAnalytics{GroupID: groupID, MemberIDs: memberIDs})
}

// Stats reports the underlying cache statistics.
func (s *CoreGroupCache) Stats() cache.Stats { return s.c.Stats() }

// Cache exposes the underlying cache.
func (s *CoreGroupCache) Cache() cache.Service[CoreGroupAnalytics] { return s.c }

// ChartCache caches derived, render-ready chart data.
type ChartCache struct {
	c cache.Service[ChartData]
}

// NewChartCache wraps c.
func NewChartCache(c cache.Service[ChartData]) *ChartCache {
	return &ChartCache{c: c}
}

// GetChart returns chart:{kind}:{employeeID}:{quarterID}, computing on miss.
func (s *ChartCache) GetChart(ctx context.Context, kind ChartKind, employeeID, quarterID string, compute cache.FetchFn[ChartData]) (ChartData, error) {
	return s.c.GetOrFetch(ctx, ChartKey(kind, employeeID, quarterID), compute)
}

// SetChart writes chart data through to the cache.
func (s *ChartCache) SetChart(ctx context.Context, data ChartData) {
	s.c.Set(ctx, ChartKey(data.Kind, data.EmployeeID, data.QuarterID), data)
}

// GetTrend returns chart:trend:{employeeID}, computing on miss.
func (s *ChartCache) GetTrend(ctx context.Context, employeeID string, compute cache.FetchFn[ChartData]) (ChartData, error) {
	return s.c.GetOrFetch(ctx, TrendKey(employeeID), compute)
}

// GetDistribution returns chart:distribution:{quarterID}, computing on miss.
func (s *ChartCache) GetDistribution(ctx context.Context, quarterID string, compute cache.FetchFn[ChartData]) (ChartData, error) {
	return s.c.GetOrFetch(ctx, DistributionKey(quarterID), compute)
}

// Stats reports the underlying cache statistics.
func (s *ChartCache) Stats() cache.Stats { return s.c.Stats() }

// Cache exposes the underlying cache.
func (s *ChartCache) Cache() cache.Service[ChartData] { return s.c }
