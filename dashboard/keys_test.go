package dashboard

import (
	"testing"
)

func TestKeyTemplates(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"employee", EmployeeKey("E1"), "employee:E1"},
		{"employee list", EmployeeListKey(EmployeeFilter{Department: "engineering", ActiveOnly: true}), "employee:list:struct:{Department=engineering,ActiveOnly=true}"},
		{"employee list unfiltered", EmployeeListKey(EmployeeFilter{}), "employee:list:struct:{}"},
		{"quarter", QuarterKey("Q3"), "quarter:Q3"},
		{"quarter list", QuarterListKey(), "quarter:list"},
		{"current quarter", CurrentQuarterKey(), "quarter:current"},
		{"evaluation", EvaluationKey("E1", "Q3"), "evaluation:E1:Q3"},
		{"employee evaluations", EmployeeEvaluationsKey("E1"), "evaluation:employee:E1"},
		{"quarter evaluations", QuarterEvaluationsKey("Q3"), "evaluation:quarter:Q3"},
		{"core group", CoreGroupKey("G1", "Q3"), "coregroup:G1:Q3"},
		{"core group members", CoreGroupMembersKey("G1"), "coregroup:members:G1"},
		{"chart", ChartKey(ChartRadar, "E1", "Q3"), "chart:radar:E1:Q3"},
		{"trend", TrendKey("E1"), "chart:trend:E1"},
		{"distribution", DistributionKey("Q3"), "chart:distribution:Q3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestIDPattern(t *testing.T) {
	re := IDPattern("E1")

	for _, key := range []string{"E1", "employee:E1", "evaluation:E1:Q3", "chart:radar:E1:Q3", "evaluation:employee:E1"} {
		if !re.MatchString(key) {
			t.Errorf("IDPattern(E1) should match %q", key)
		}
	}
	for _, key := range []string{"employee:E12", "evaluation:E12:Q3", "employee:XE1", "chart:trend:E1X"} {
		if re.MatchString(key) {
			t.Errorf("IDPattern(E1) should not match %q", key)
		}
	}

	// Regex metacharacters in ids are literal.
	dotted := IDPattern("a.b")
	if !dotted.MatchString("employee:a.b") {
		t.Error("IDPattern(a.b) should match employee:a.b")
	}
	if dotted.MatchString("employee:axb") {
		t.Error("IDPattern(a.b) should not match employee:axb")
	}
}

func TestPrefixAndExactPatterns(t *testing.T) {
	lists := prefixPattern(employeePrefix, "list")
	tests := []struct {
		key  string
		want bool
	}{
		{EmployeeListKey(EmployeeFilter{}), true},
		{"employee:listing", false},
		{EmployeeKey("list"), false},
	}
	for _, tt := range tests {
		if got := lists.MatchString(tt.key); got != tt.want {
			t.Errorf("prefixPattern(list).MatchString(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	current := exactPattern(CurrentQuarterKey())
	if !current.MatchString("quarter:current") {
		t.Error("exactPattern should match its own key")
	}
	if current.MatchString("quarter:current:x") {
		t.Error("exactPattern should not match longer keys")
	}
}

func TestEmployeeFilter_Match(t *testing.T) {
	e := Employee{ID: "E1", Department: "engineering", CoreGroupID: "G1", ManagerID: "M1", Active: true}

	tests := []struct {
		name   string
		filter EmployeeFilter
		emp    Employee
		want   bool
	}{
		{"empty filter", EmployeeFilter{}, e, true},
		{"department and active", EmployeeFilter{Department: "engineering", ActiveOnly: true}, e, true},
		{"other department", EmployeeFilter{Department: "research"}, e, false},
		{"other core group", EmployeeFilter{CoreGroupID: "G2"}, e, false},
		{"other manager", EmployeeFilter{ManagerID: "M2"}, e, false},
		{"inactive", EmployeeFilter{ActiveOnly: true}, Employee{}, false},
		{"search hit", EmployeeFilter{Search: "hopper"}, Employee{Name: "Grace Hopper"}, true},
		{"search miss", EmployeeFilter{Search: "turing"}, Employee{Name: "Grace Hopper"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.emp); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
