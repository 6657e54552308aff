package roster

// NextEligible computes the next student to process after currentID within
// the given ordered sequence.
//
// Rule:
//   - Scan strictly forward from the position immediately after currentID.
//   - The first student with Status == pending and IsScanned == false wins.
//   - Absent, missing and already-scanned students are skipped and never
//     revisited by this scan.
//   - If currentID is not present, or the remainder holds no eligible
//     student, ok is false. No wrap-around, no cross-page lookahead; crossing
//     roster pages is the caller's decision.
//
// This is a pure function of its inputs: identical (students, currentID)
// pairs always yield identical results.
func NextEligible(students []Student, currentID string) (Student, bool) {
	cur := -1
	for i, s := range students {
		if s.ID == currentID {
			cur = i
			break
		}
	}
	if cur < 0 {
		return Student{}, false
	}

	for _, s := range students[cur+1:] {
		if s.Eligible() {
			return s, true
		}
	}
	return Student{}, false
}

// FirstEligible returns the first eligible student of the sequence, used when
// a session opens without an explicit starting point.
func FirstEligible(students []Student) (Student, bool) {
	for _, s := range students {
		if s.Eligible() {
			return s, true
		}
	}
	return Student{}, false
}
