package dashboard

import (
	"regexp"

	"github.com/goliatone/go-smartcache/cache"
)

// Key prefixes. Every cache key starts with one of these followed by cache.KeySeparator.
const (
	employeePrefix   = "employee"
	quarterPrefix    = "quarter"
	evaluationPrefix = "evaluation"
	coreGroupPrefix  = "coregroup"
	chartPrefix      = "chart"
)

var keys = cache.NewDefaultKeySerializer()

// EmployeeKey is employee:{id}.
func EmployeeKey(id string) string { return keys.SerializeKey(employeePrefix, id) }

// EmployeeListKey is employee:list:{filter}.
func EmployeeListKey(filter EmployeeFilter) string {
	return keys.SerializeKey(employeePrefix, "list", filter)
}

// QuarterKey is quarter:{id}.
func QuarterKey(id string) string { return keys.SerializeKey(quarterPrefix, id) }

// QuarterListKey is quarter:list.
func QuarterListKey() string { return keys.SerializeKey(quarterPrefix, "list") }

// CurrentQuarterKey is quarter:current.
func CurrentQuarterKey() string { return keys.SerializeKey(quarterPrefix, "current") }

// EvaluationKey is evaluation:{employeeID}:{quarterID}.
func EvaluationKey(employeeID, quarterID string) string {
	return keys.SerializeKey(evaluationPrefix, employeeID, quarterID)
}

// EmployeeEvaluationsKey is evaluation:employee:{employeeID}.
func EmployeeEvaluationsKey(employeeID string) string {
	return keys.SerializeKey(evaluationPrefix, "employee", employeeID)
}

// QuarterEvaluationsKey is evaluation:quarter:{quarterID}.
func QuarterEvaluationsKey(quarterID string) string {
	return keys.SerializeKey(evaluationPrefix, "quarter", quarterID)
}

// CoreGroupKey is coregroup:{groupID}:{quarterID}.
func CoreGroupKey(groupID, quarterID string) string {
	return keys.SerializeKey(coreGroupPrefix, groupID, quarterID)
}

// CoreGroupMembersKey is coregroup:members:{groupID}.
func CoreGroupMembersKey(groupID string) string {
	return keys.SerializeKey(coreGroupPrefix, "members", groupID)
}

// ChartKey is chart:{kind}:{employeeID}:{quarterID}.
func ChartKey(kind ChartKind, employeeID, quarterID string) string {
	return keys.SerializeKey(chartPrefix, string(kind), employeeID, quarterID)
}

// TrendKey is chart:trend:{employeeID}.
func TrendKey(employeeID string) string {
	return keys.SerializeKey(chartPrefix, string(ChartTrend), employeeID)
}

// DistributionKey is chart:distribution:{quarterID}.
func DistributionKey(quarterID string) string {
	return keys.SerializeKey(chartPrefix, string(ChartDistribution), quarterID)
}

// IDPattern matches any key containing id as a whole segment, so evaluation:E1:Q3 is
// found by both E1 and Q3 while E12 does not match E1.
func IDPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`(^|` + regexp.QuoteMeta(cache.KeySeparator) + `)` +
		regexp.QuoteMeta(id) +
		`(` + regexp.QuoteMeta(cache.KeySeparator) + `|$)`)
}

// prefixPattern matches every key under the given segments, e.g. employee:list.
func prefixPattern(segments ...string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(keys.SerializeKey("", toAny(segments)...)+cache.KeySeparator))
}

// exactPattern matches exactly the given key.
func exactPattern(key string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(key) + "$")
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
