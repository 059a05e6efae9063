// Package problem defines the read-only problem catalog consumed by the
// execution pipeline. A problem maps a function name onto a fixed set of
// test cases together with the comparison strategy used to accept answers.
package problem

import "fmt"

// CompareKind selects the strategy used to decide whether an actual return
// value matches the expected answer for a test case.
type CompareKind string

const (
	// CompareExact is structural equality after JSON round-trip.
	CompareExact CompareKind = "exact"
	// CompareSorted treats both sides as flat sequences and compares
	// sorted copies.
	CompareSorted CompareKind = "sorted"
	// CompareUnorderedLists compares a sequence of sequences ignoring
	// order at both levels (group anagrams, subsets, 3sum).
	CompareUnorderedLists CompareKind = "unordered_lists"
	// CompareFloat is numeric equality within a fixed absolute tolerance.
	CompareFloat CompareKind = "float"
	// ComparePalindromeSubstring accepts any palindromic substring of the
	// input with the same length as the expected answer.
	ComparePalindromeSubstring CompareKind = "palindrome_substring"
)

// Valid reports whether k is a member of the closed CompareKind set.
func (k CompareKind) Valid() bool {
	switch k {
	case CompareExact, CompareSorted, CompareUnorderedLists, CompareFloat, ComparePalindromeSubstring:
		return true
	}
	return false
}

// TestCase is a single hidden test. Args is positional and maps 1:1 onto
// the target function's parameters.
type TestCase struct {
	Args         []any  `json:"args" yaml:"args"`
	Expected     any    `json:"expected" yaml:"expected"`
	InputDisplay string `json:"inputDisplay" yaml:"inputDisplay"`
}

// Problem is a single catalog entry. Immutable for the lifetime of a request.
type Problem struct {
	Title        string      `json:"title" yaml:"title"`
	FunctionName string      `json:"functionName" yaml:"functionName"`
	TestCases    []TestCase  `json:"testCases" yaml:"testCases"`
	Compare      CompareKind `json:"compareFunction" yaml:"compareFunction"`
}

func (p Problem) validate(id string) error {
	if p.Title == "" {
		return fmt.Errorf("problem %q: missing title", id)
	}
	if p.FunctionName == "" {
		return fmt.Errorf("problem %q: missing functionName", id)
	}
	if len(p.TestCases) == 0 {
		return fmt.Errorf("problem %q: no test cases", id)
	}
	if p.Compare != "" && !p.Compare.Valid() {
		return fmt.Errorf("problem %q: unknown compareFunction %q", id, p.Compare)
	}
	return nil
}
