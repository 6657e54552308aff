package roster

import "testing"

func sampleRoster() []Student {
	return []Student{
		{ID: "a", RollNumber: "101", Status: StatusPending},
		{ID: "b", RollNumber: "102", Status: StatusAbsent},
		{ID: "c", RollNumber: "103", Status: StatusPending},
		{ID: "d", RollNumber: "104", Status: StatusPending, IsScanned: true},
		{ID: "e", RollNumber: "105", Status: StatusMissing},
		{ID: "f", RollNumber: "106", Status: StatusPending},
	}
}

// TestNextEligibleSkipsIneligible verifies absent, missing and already
// scanned students are passed over.
func TestNextEligibleSkipsIneligible(t *testing.T) {
	students := sampleRoster()

	next, ok := NextEligible(students, "a")
	if !ok {
		t.Fatal("expected an eligible student after a")
	}
	if next.ID != "c" {
		t.Errorf("expected c, got %s", next.ID)
	}

	next, ok = NextEligible(students, "c")
	if !ok {
		t.Fatal("expected an eligible student after c")
	}
	if next.ID != "f" {
		t.Errorf("expected f, got %s", next.ID)
	}
}

// TestNextEligibleForwardOnly verifies the search never wraps around to
// earlier positions, even when earlier students are eligible.
func TestNextEligibleForwardOnly(t *testing.T) {
	students := sampleRoster()

	if _, ok := NextEligible(students, "f"); ok {
		t.Error("expected no candidate after the last student, earlier eligible students must not be revisited")
	}
}

// TestNextEligibleUnknownCurrent verifies an unknown current id yields no
// candidate rather than a panic or an arbitrary pick.
func TestNextEligibleUnknownCurrent(t *testing.T) {
	students := sampleRoster()

	if _, ok := NextEligible(students, "zzz"); ok {
		t.Error("expected no candidate for unknown current id")
	}
	if _, ok := NextEligible(nil, "a"); ok {
		t.Error("expected no candidate on empty roster")
	}
}

// TestNextEligiblePure verifies the lookup never mutates its input.
func TestNextEligiblePure(t *testing.T) {
	students := sampleRoster()
	before := make([]Student, len(students))
	copy(before, students)

	NextEligible(students, "a")
	NextEligible(students, "f")

	for i := range students {
		if students[i] != before[i] {
			t.Fatalf("student %d mutated: %+v != %+v", i, students[i], before[i])
		}
	}
}

// TestFirstEligible verifies the session entry point picks the first
// candidate in roster order.
func TestFirstEligible(t *testing.T) {
	students := sampleRoster()

	first, ok := FirstEligible(students)
	if !ok {
		t.Fatal("expected an eligible student")
	}
	if first.ID != "a" {
		t.Errorf("expected a, got %s", first.ID)
	}

	allDone := []Student{
		{ID: "x", Status: StatusAbsent},
		{ID: "y", Status: StatusPending, IsScanned: true},
	}
	if _, ok := FirstEligible(allDone); ok {
		t.Error("expected no candidate when everyone is ineligible")
	}
}

// TestEligiblePredicate verifies the two-part eligibility rule.
func TestEligiblePredicate(t *testing.T) {
	cases := []struct {
		name    string
		student Student
		want    bool
	}{
		{"pending unscanned", Student{Status: StatusPending}, true},
		{"pending scanned", Student{Status: StatusPending, IsScanned: true}, false},
		{"absent", Student{Status: StatusAbsent}, false},
		{"missing", Student{Status: StatusMissing}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.student.Eligible(); got != tc.want {
				t.Errorf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}
