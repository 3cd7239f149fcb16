// Copyright 2025 Covenant Protocol
//
// CCL Algebra Tests — merge and narrowing

package ccl

import "testing"

func TestMerge_DenyInclusion(t *testing.T) {
	parent := MustParse("deny exfil on '**'\npermit read on '/data/**'")
	child := MustParse("deny write on '/system'\npermit read on '/data/public'")

	merged := Merge(parent, child)
	if len(merged.Denies) != 2 {
		t.Fatalf("merged denies count: got %d, want 2", len(merged.Denies))
	}
	if merged.Denies[0].Action != "exfil" || merged.Denies[1].Action != "write" {
		t.Error("deny order must be parent then child")
	}
	if len(merged.Permits) != 2 {
		t.Errorf("merged permits count: got %d", len(merged.Permits))
	}
	if merged.Permits[0].Resource != "/data/public" {
		t.Error("permit order must be child then parent")
	}
}

func TestMerge_DenyWinsAfterMerge(t *testing.T) {
	parent := MustParse("deny read on '/data/secret'")
	child := MustParse("permit read on '/data/secret'")
	merged := Merge(parent, child)
	if r := Evaluate(merged, "read", "/data/secret", nil); r.Permitted {
		t.Error("parent deny must survive merge")
	}
}

func TestMerge_LimitsTakeMinimum(t *testing.T) {
	parent := MustParse("limit api.call 100 per 1 hours\nlimit upload 5 per 1 days")
	child := MustParse("limit api.call 10 per 1 hours\nlimit search 50 per 1 hours")

	merged := Merge(parent, child)
	if len(merged.Limits) != 3 {
		t.Fatalf("merged limits count: got %d, want 3", len(merged.Limits))
	}
	byAction := map[string]Statement{}
	for _, l := range merged.Limits {
		byAction[l.Action] = l
	}
	if byAction["api.call"].Count != 10 {
		t.Errorf("api.call limit should be the smaller count, got %d", byAction["api.call"].Count)
	}
	if byAction["upload"].Count != 5 || byAction["search"].Count != 50 {
		t.Error("unshared limits must carry over")
	}
}

func TestMerge_LimitTieChildReplaces(t *testing.T) {
	parent := MustParse("limit api.call 10 per 1 hours")
	child := MustParse("limit api.call 10 per 2 hours")
	merged := Merge(parent, child)
	if len(merged.Limits) != 1 {
		t.Fatalf("merged limits count: got %d", len(merged.Limits))
	}
	if merged.Limits[0].PeriodSeconds != 7200 {
		t.Errorf("child limit should replace on equal count, got period %d", merged.Limits[0].PeriodSeconds)
	}
}

func TestMerge_ObligationsFromBoth(t *testing.T) {
	parent := MustParse("require audit.log on '**'")
	child := MustParse("require notify.owner on '**'")
	merged := Merge(parent, child)
	if len(merged.Obligations) != 2 {
		t.Errorf("merged obligations count: got %d", len(merged.Obligations))
	}
	if merged.Obligations[0].Action != "audit.log" {
		t.Error("obligation order must be parent then child")
	}
}

func TestValidateNarrowing_DenyOnlyChildAlwaysValid(t *testing.T) {
	parents := []string{
		"permit read on '/data/**'",
		"deny exec on '**'",
		"permit ** on '**'\ndeny write on '/system'",
	}
	child := MustParse("deny anything.at.all on '**'\ndeny more on '/x'")
	for _, src := range parents {
		result := ValidateNarrowing(MustParse(src), child)
		if !result.Valid {
			t.Errorf("deny-only child rejected against parent %q: %+v", src, result.Violations)
		}
	}
}

func TestValidateNarrowing_PermitWhatParentDenies(t *testing.T) {
	parent := MustParse("permit ** on '**'\ndeny write on '/system/**'")
	child := MustParse("permit write on '/system/config'")
	result := ValidateNarrowing(parent, child)
	if result.Valid {
		t.Fatal("child permitting a parent-denied action must be invalid")
	}
	if len(result.Violations) == 0 {
		t.Fatal("expected at least one violation")
	}
}

func TestValidateNarrowing_SubsetOfParentPermit(t *testing.T) {
	parent := MustParse("permit read.** on '/data/**'")

	valid := MustParse("permit read.file on '/data/public/**'")
	if r := ValidateNarrowing(parent, valid); !r.Valid {
		t.Errorf("subset child rejected: %+v", r.Violations)
	}

	invalid := MustParse("permit write on '/data/public'")
	if r := ValidateNarrowing(parent, invalid); r.Valid {
		t.Error("non-subset child accepted")
	}
}

func TestValidateNarrowing_EmptyParentPermits(t *testing.T) {
	// With no parent permits, only the deny-overlap rule applies
	parent := MustParse("deny exec on '/bin/**'")
	child := MustParse("permit read on '/data'")
	if r := ValidateNarrowing(parent, child); !r.Valid {
		t.Errorf("child permit rejected with permit-free parent: %+v", r.Violations)
	}
}

func TestIsSubsetPattern_Cases(t *testing.T) {
	cases := []struct {
		child, parent, sep string
		want               bool
	}{
		{"read", "**", ".", true},
		{"**", "read", ".", false},
		{"**", "**", ".", true},
		{"read.file", "read.*", ".", true},
		{"read.*", "read.file", ".", false},
		{"read.*", "read.*", ".", true},
		{"read.*", "read.**", ".", true},
		{"read.file", "read.**", ".", true},
		{"read", "read.**", ".", true},
		{"a/b/c", "a/**", "/", true},
		{"a/b", "a/*/c", "/", false},
		{"read", "write", ".", false},
	}
	for _, tc := range cases {
		if got := IsSubsetPattern(tc.child, tc.parent, tc.sep); got != tc.want {
			t.Errorf("IsSubsetPattern(%q, %q) = %v, want %v", tc.child, tc.parent, got, tc.want)
		}
	}
}

func TestPatternsOverlap_Cases(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"**", "anything", true},
		{"*", "anything", true},
		{"read", "read", true},
		{"read", "write", false},
		{"read.*", "read.file", true},
		{"/data/**", "/data/secret", true},
		{"/data/x", "/other/y", false},
	}
	for _, tc := range cases {
		if got := PatternsOverlap(tc.a, tc.b); got != tc.want {
			t.Errorf("PatternsOverlap(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
