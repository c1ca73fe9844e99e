package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Name)
		}
	}

	return buf.String()
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertCallOrder:
		return assertCallOrder(r.Trace, a)
	case AssertCallCount:
		return assertCallCount(r.Trace, a)
	case AssertQueue:
		return assertList(AssertQueue, a.Scores, r.Final.Queue)
	case AssertMatches:
		return assertList(AssertMatches, a.IDs, r.Final.Matches)
	case AssertTurn:
		if a.Match != r.Final.Turn {
			return &AssertionError{Type: AssertTurn, Expected: fmt.Sprintf("%q", a.Match), Actual: fmt.Sprintf("%q", r.Final.Turn)}
		}
		return nil
	case AssertStatus:
		return assertStatus(r.Final, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertCallOrder checks that the calls appear in the given order.
// Calls don't need to be consecutive, and a call listed twice must occur
// twice.
func assertCallOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Calls) {
			break
		}
		if event.Type == EventCall && event.Name == a.Calls[next] {
			next++
		}
	}
	if next < len(a.Calls) {
		return &AssertionError{
			Type:     AssertCallOrder,
			Expected: fmt.Sprintf("calls in order: %v", a.Calls),
			Actual:   fmt.Sprintf("missing or out of order: %s", a.Calls[next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallCount checks that operation Op was called exactly Count times.
func assertCallCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventCall && strings.HasPrefix(event.Name, a.Op+"(") {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertList(typ string, expected, actual []string) error {
	if expected == nil {
		expected = []string{}
	}
	if !reflect.DeepEqual(expected, actual) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// assertStatus compares a subset of status fields, by their JSON names.
func assertStatus(final FinalState, a Assertion) error {
	data, err := json.Marshal(final.Status)
	if err != nil {
		return err
	}
	var actual map[string]any
	if err := json.Unmarshal(data, &actual); err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		if !valuesEqual(a.Expect[k], actual[k]) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%v (want %v)", k, actual[k], a.Expect[k]))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

// valuesEqual compares a YAML value with a JSON-decoded one. Numbers compare
// by value, absent JSON fields equal their zero value.
func valuesEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case int:
		f, ok := actual.(float64)
		return (ok && f == float64(e)) || (actual == nil && e == 0)
	case bool:
		b, ok := actual.(bool)
		return (ok && b == e) || (actual == nil && !e)
	case string:
		s, ok := actual.(string)
		return (ok && s == e) || (actual == nil && e == "")
	case nil:
		return actual == nil
	}
	return reflect.DeepEqual(expected, actual)
}
