package dashboard

import (
	"strings"
	"time"
)

// Employee is a person being evaluated.
type Employee struct {
	ID          string `json:"id" msgpack:"id"`
	Name        string `json:"name" msgpack:"name"`
	Email       string `json:"email" msgpack:"email"`
	Department  string `json:"department" msgpack:"department"`
	Position    string `json:"position" msgpack:"position"`
	ManagerID   string `json:"manager_id,omitempty" msgpack:"manager_id"`
	CoreGroupID string `json:"core_group_id,omitempty" msgpack:"core_group_id"`
	Active      bool   `json:"active" msgpack:"active"`
}

// EmployeeFilter narrows an employee listing. Zero fields do not filter and do not
// take part in the cache key.
type EmployeeFilter struct {
	Department  string `json:"department,omitempty"`
	CoreGroupID string `json:"core_group_id,omitempty"`
	ManagerID   string `json:"manager_id,omitempty"`
	ActiveOnly  bool   `json:"active_only,omitempty"`
	Search      string `json:"search,omitempty"`
}

// Match reports whether e passes the filter.
func (f EmployeeFilter) Match(e Employee) bool {
	switch {
	case f.Department != "" && f.Department != e.Department:
		return false
	case f.CoreGroupID != "" && f.CoreGroupID != e.CoreGroupID:
		return false
	case f.ManagerID != "" && f.ManagerID != e.ManagerID:
		return false
	case f.ActiveOnly && !e.Active:
		return false
	case f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)):
		return false
	}
	return true
}

// Quarter is an evaluation period.
type Quarter struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Year      int       `json:"year" msgpack:"year"`
	Number    int       `json:"number" msgpack:"number"`
	StartDate time.Time `json:"start_date" msgpack:"start_date"`
	EndDate   time.Time `json:"end_date" msgpack:"end_date"`
	Current   bool      `json:"current" msgpack:"current"`
}

// Contains reports whether t falls inside the quarter.
func (q Quarter) Contains(t time.Time) bool {
	return !t.Before(q.StartDate) && t.Before(q.EndDate)
}

// EvaluationScore aggregates the evaluations one employee received in one quarter.
type EvaluationScore struct {
	EmployeeID     string             `json:"employee_id" msgpack:"employee_id"`
	QuarterID      string             `json:"quarter_id" msgpack:"quarter_id"`
	Attributes     map[string]float64 `json:"attributes" msgpack:"attributes"`
	Overall        float64            `json:"overall" msgpack:"overall"`
	SelfScore      float64            `json:"self_score,omitempty" msgpack:"self_score"`
	ManagerScore   float64            `json:"manager_score,omitempty" msgpack:"manager_score"`
	PeerScore      float64            `json:"peer_score,omitempty" msgpack:"peer_score"`
	EvaluatorCount int                `json:"evaluator_count" msgpack:"evaluator_count"`
	UpdatedAt      time.Time          `json:"updated_at" msgpack:"updated_at"`
}

// CoreGroupAnalytics summarises a core group for one quarter. Member listings are
// cached as analytics with only GroupID and MemberIDs set.
type CoreGroupAnalytics struct {
	GroupID      string             `json:"group_id" msgpack:"group_id"`
	QuarterID    string             `json:"quarter_id,omitempty" msgpack:"quarter_id"`
	Name         string             `json:"name,omitempty" msgpack:"name"`
	MemberIDs    []string           `json:"member_ids" msgpack:"member_ids"`
	AverageScore float64            `json:"average_score" msgpack:"average_score"`
	Attributes   map[string]float64 `json:"attributes,omitempty" msgpack:"attributes"`
	Distribution map[string]int     `json:"distribution,omitempty" msgpack:"distribution"`
}

// ChartKind names a derived chart.
type ChartKind string

const (
	ChartRadar        ChartKind = "radar"
	ChartBar          ChartKind = "bar"
	ChartComparison   ChartKind = "comparison"
	ChartTrend        ChartKind = "trend"
	ChartDistribution ChartKind = "distribution"
)

// ChartSeries is one named data series.
type ChartSeries struct {
	Name   string    `json:"name" msgpack:"name"`
	Values []float64 `json:"values" msgpack:"values"`
}

// ChartData is a computed, render-ready chart.
type ChartData struct {
	Kind       ChartKind     `json:"kind" msgpack:"kind"`
	EmployeeID string        `json:"employee_id,omitempty" msgpack:"employee_id"`
	QuarterID  string        `json:"quarter_id,omitempty" msgpack:"quarter_id"`
	Labels     []string      `json:"labels" msgpack:"labels"`
	Series     []ChartSeries `json:"series" msgpack:"series"`
}
