// Copyright 2025 Covenant Protocol
//
// CCL Matcher and Evaluator Tests

package ccl

import (
	"strings"
	"testing"
	"time"
)

func TestMatchAction_Wildcards(t *testing.T) {
	cases := []struct {
		pattern, action string
		want            bool
	}{
		{"read", "read", true},
		{"read", "write", false},
		{"tools.*", "tools.search", true},
		{"tools.*", "tools.search.deep", false},
		{"tools.**", "tools.search.deep", true},
		{"tools.**", "tools", true},
		{"**", "anything.at.all", true},
		{"*.read", "file.read", true},
		{"*.read", "read", false},
		{"a.**.z", "a.b.c.z", true},
		{"a.**.z", "a.z", true},
		{"a.**.z", "a.b.c", false},
	}
	for _, tc := range cases {
		if got := MatchAction(tc.pattern, tc.action); got != tc.want {
			t.Errorf("MatchAction(%q, %q) = %v, want %v", tc.pattern, tc.action, got, tc.want)
		}
	}
}

func TestMatchResource_Normalization(t *testing.T) {
	cases := []struct {
		pattern, resource string
		want              bool
	}{
		{"/data/**", "/data/users/123", true},
		{"data/**", "/data/users/123", true},
		{"/data/**/", "data/users", true},
		{"/data/**", "/other", false},
		{"**", "/anything/here", true},
		{"*", "/single", true},
		{"*", "/two/segments", false},
		{"", "", true},
		{"", "/x", false},
		{"/data/*/meta", "/data/a/meta", true},
		{"/data/*/meta", "/data/a/b/meta", false},
	}
	for _, tc := range cases {
		if got := MatchResource(tc.pattern, tc.resource); got != tc.want {
			t.Errorf("MatchResource(%q, %q) = %v, want %v", tc.pattern, tc.resource, got, tc.want)
		}
	}
}

func TestSpecificity_Scores(t *testing.T) {
	cases := []struct {
		action, resource string
		want             int
	}{
		{"read", "/data", 4},
		{"read.*", "/data/**", 3 + 2},
		{"**", "**", 0},
		{"a.b", "", 4},
	}
	for _, tc := range cases {
		if got := Specificity(tc.action, tc.resource); got != tc.want {
			t.Errorf("Specificity(%q, %q) = %d, want %d", tc.action, tc.resource, got, tc.want)
		}
	}
}

func TestEvaluate_BasicPermit(t *testing.T) {
	doc := MustParse("permit read on '/data/**'")

	r := Evaluate(doc, "read", "/data/users/123", nil)
	if !r.Permitted {
		t.Errorf("expected permit, got deny: %s", r.Reason)
	}

	r = Evaluate(doc, "write", "/data/users/123", nil)
	if r.Permitted {
		t.Error("expected deny for unmatched action")
	}
	if !strings.Contains(r.Reason, "default deny") {
		t.Errorf("default deny reason missing: %s", r.Reason)
	}
}

func TestEvaluate_DenyOverride(t *testing.T) {
	doc := MustParse("permit read on '/data/**'\ndeny read on '/data/secret'")

	if r := Evaluate(doc, "read", "/data/public", nil); !r.Permitted {
		t.Errorf("expected permit for /data/public: %s", r.Reason)
	}
	r := Evaluate(doc, "read", "/data/secret", nil)
	if r.Permitted {
		t.Error("expected deny for /data/secret")
	}
	if r.MatchedRule == nil || r.MatchedRule.Kind != KindDeny {
		t.Errorf("winner should be the deny rule: %+v", r.MatchedRule)
	}
}

func TestEvaluate_DenyWinsAtEqualSpecificity(t *testing.T) {
	doc := MustParse("permit read on '/data'\ndeny read on '/data'")
	r := Evaluate(doc, "read", "/data", nil)
	if r.Permitted {
		t.Error("deny must win at equal specificity")
	}
}

func TestEvaluate_SpecificityOrdersWinner(t *testing.T) {
	doc := MustParse("deny ** on '**'\npermit read on '/data/public'")
	r := Evaluate(doc, "read", "/data/public", nil)
	if !r.Permitted {
		t.Errorf("more specific permit should beat broad deny: %s", r.Reason)
	}
}

func TestEvaluate_ConditionGates(t *testing.T) {
	doc := MustParse("permit read on '/data' when user.role = 'admin'")

	ctx := map[string]interface{}{"user": map[string]interface{}{"role": "admin"}}
	if r := Evaluate(doc, "read", "/data", ctx); !r.Permitted {
		t.Errorf("expected permit with satisfied condition: %s", r.Reason)
	}

	ctx = map[string]interface{}{"user": map[string]interface{}{"role": "guest"}}
	if r := Evaluate(doc, "read", "/data", ctx); r.Permitted {
		t.Error("expected deny with failed condition")
	}

	// Missing field evaluates to false
	if r := Evaluate(doc, "read", "/data", nil); r.Permitted {
		t.Error("expected deny with missing context field")
	}
}

func TestEvaluate_ObligationsDoNotDecide(t *testing.T) {
	doc := MustParse("require audit.log on '**'")
	r := Evaluate(doc, "audit.log", "/any", nil)
	if r.Permitted {
		t.Error("obligations must not grant access")
	}
	if len(r.AllMatches) != 1 {
		t.Errorf("obligation missing from AllMatches: %d", len(r.AllMatches))
	}
}

func TestEvaluate_SeverityOfWinner(t *testing.T) {
	doc := MustParse("deny exec on '**' severity critical")
	r := Evaluate(doc, "exec", "/bin", nil)
	if r.Severity != SeverityCritical {
		t.Errorf("severity mismatch: %s", r.Severity)
	}
}

func TestEvaluateCondition_Operators(t *testing.T) {
	ctx := map[string]interface{}{
		"name":  "production-server",
		"count": 5.0,
		"tags":  []interface{}{"safe", "reviewed"},
		"flag":  true,
	}
	cases := []struct {
		src  string
		want bool
	}{
		{"count < 10", true},
		{"count >= 5", true},
		{"count > 5", false},
		{"count < 'abc'", false},
		{"name contains 'prod'", true},
		{"name not_contains 'dev'", true},
		{"tags contains 'safe'", true},
		{"tags contains 'unsafe'", false},
		{"name in ['production-server', 'backup']", true},
		{"name not_in ['a', 'b']", true},
		{"count in ['5', '6']", true},
		{"name matches '^prod.*server$'", true},
		{"name matches '[invalid'", false},
		{"name starts_with 'prod'", true},
		{"name ends_with 'server'", true},
		{"flag = true", true},
		{"flag != false", true},
		{"missing.field = 'x'", false},
		{"name.deeper = 'x'", false},
	}
	for _, tc := range cases {
		doc := MustParse("permit a on '/r' when " + tc.src)
		got := EvaluateCondition(doc.Permits[0].Condition, ctx)
		if got != tc.want {
			t.Errorf("condition %q = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestEvaluateCondition_Compound(t *testing.T) {
	ctx := map[string]interface{}{"a": 1.0, "b": 2.0}
	cases := []struct {
		src  string
		want bool
	}{
		{"a = 1 and b = 2", true},
		{"a = 1 and b = 3", false},
		{"a = 9 or b = 2", true},
		{"not a = 9", true},
		{"not (a = 1 and b = 2)", false},
	}
	for _, tc := range cases {
		doc := MustParse("permit x on '/r' when " + tc.src)
		if got := EvaluateCondition(doc.Permits[0].Condition, ctx); got != tc.want {
			t.Errorf("condition %q = %v, want %v", tc.src, got, tc.want)
		}
	}
}

func TestCheckRateLimit_Windows(t *testing.T) {
	doc := MustParse("limit api.call 10 per 1 minutes")
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Inside window, under the limit
	r := CheckRateLimit(doc, "api.call", 4, start, start.Add(30*time.Second))
	if r.Exceeded || r.Remaining != 6 {
		t.Errorf("unexpected result inside window: %+v", r)
	}

	// Inside window, at the limit
	r = CheckRateLimit(doc, "api.call", 10, start, start.Add(30*time.Second))
	if !r.Exceeded || r.Remaining != 0 {
		t.Errorf("limit not enforced: %+v", r)
	}

	// Window expired: count resets
	r = CheckRateLimit(doc, "api.call", 10, start, start.Add(2*time.Minute))
	if r.Exceeded || r.Remaining != 10 {
		t.Errorf("expired window not reset: %+v", r)
	}

	// No matching limit
	r = CheckRateLimit(doc, "other.op", 1000, start, start)
	if r.Exceeded || r.Limit != nil {
		t.Errorf("unmatched action should be unconstrained: %+v", r)
	}
}

func TestCheckRateLimit_MostSpecificWins(t *testing.T) {
	doc := MustParse("limit api.** 100 per 1 hours\nlimit api.search 5 per 1 hours")
	start := time.Now()
	r := CheckRateLimit(doc, "api.search", 6, start, start)
	if !r.Exceeded {
		t.Error("specific limit should apply")
	}
	if r.Limit == nil || r.Limit.Count != 5 {
		t.Errorf("wrong limit selected: %+v", r.Limit)
	}
}
