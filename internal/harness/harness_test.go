package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_TracesStepsBeforeCalls(t *testing.T) {
	scenario := &Scenario{
		Name:        "trace_order",
		Description: "steps precede the calls they cause",
		Credentials: &CredentialSpec{UserID: "player-1", Secret: "s3cret"},
		Steps: []Step{
			{Do: StepEnqueueScore, Args: map[string]any{"mode": "gravity", "sort_value": 3}},
			{Do: StepFlush},
		},
		Assertions: []Assertion{{Type: AssertQueue}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, EventStep, result.Trace[0].Type)
	assert.Equal(t, EventCall, result.Trace[1].Type)
	assert.Equal(t, "postScore(gravity/3)", result.Trace[1].Name)
	assert.Equal(t, []string{"postScore(gravity/3)"}, result.Calls())
	for i, e := range result.Trace {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestRun_FailedAssertionsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "assertions that do not hold",
		Credentials: &CredentialSpec{UserID: "player-1", Secret: "s3cret"},
		Steps:       []Step{{Do: StepRefresh}, {Do: StepFlush}},
		Assertions: []Assertion{
			{Type: AssertCallCount, Op: "listMatches", Count: 2},
			{Type: AssertTurn, Match: "m9"},
			{Type: AssertStatus, Expect: map[string]any{"last_refresh_ok": false}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "call_count")
	assert.Contains(t, result.Errors[1], "turn")
	assert.Contains(t, result.Errors[2], "last_refresh_ok")
}

func TestRun_RecordsCallbackOutcome(t *testing.T) {
	scenario := &Scenario{
		Name:        "open_fails",
		Description: "a rejected open is reported to the callback",
		Credentials: &CredentialSpec{UserID: "player-1", Secret: "s3cret"},
		Replies: map[string][]ReplySpec{
			"openMatch": {{Status: 409, Message: "busy"}},
		},
		Steps: []Step{
			{Do: StepOpenMatch, Args: map[string]any{"opponent": "rival", "max_level": 4}},
			{Do: StepFlush},
		},
		Assertions: []Assertion{{Type: AssertMatches}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, StepOpenMatch, last.Name)
	assert.Equal(t, 409, last.Result["status"])
	assert.Equal(t, "busy", last.Result["error"])
}

func TestRun_FetchScoreboardReportsStart(t *testing.T) {
	scenario := &Scenario{
		Name:        "board",
		Description: "a second fetch within the TTL does not start",
		Credentials: &CredentialSpec{UserID: "player-1", Secret: "s3cret"},
		Steps: []Step{
			{Do: StepFetchBoard, Args: map[string]any{"mode": "marathon", "latest": true}},
			{Do: StepFlush},
			{Do: StepFetchBoard, Args: map[string]any{"mode": "marathon", "latest": true}},
		},
		Assertions: []Assertion{{Type: AssertCallCount, Op: "latestScores", Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var started []any
	for _, e := range result.Trace {
		if e.Type == EventDone && e.Name == StepFetchBoard {
			started = append(started, e.Result["started"])
		}
	}
	assert.Equal(t, []any{true, false}, started)
}

func TestRun_UnknownScoreboardMode(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_board",
		Description: "unknown mode",
		Steps:       []Step{{Do: StepFetchBoard, Args: map[string]any{"mode": "tetris99"}}},
		Assertions:  []Assertion{{Type: AssertQueue}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tetris99")
}

func TestRun_BadReplyScript(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_reply",
		Description: "fetchMatch reply without match",
		Replies:     map[string][]ReplySpec{"fetchMatch": {{}}},
		Steps:       []Step{{Do: StepFlush}},
		Assertions:  []Assertion{{Type: AssertQueue}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match is required")
}
