package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blocksync/internal/remote/remotetest"
)

// Scenario defines an end-to-end test of the sync engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Credentials are stored before the engine starts. Nil starts without
	// identity.
	Credentials *CredentialSpec `yaml:"credentials,omitempty"`

	// Replies script the remote client per operation, consumed in order.
	// Operations without a scripted reply succeed with a default value.
	Replies map[string][]ReplySpec `yaml:"replies,omitempty"`

	// Steps drive the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// CredentialSpec is a stored identity.
type CredentialSpec struct {
	UserID string `yaml:"user_id"`
	Secret string `yaml:"secret"`
}

// ReplySpec is one scripted reply. A non-zero Status makes it a failure;
// the other fields fill the success value of the matching operation.
type ReplySpec struct {
	Status  int          `yaml:"status,omitempty"`
	Message string       `yaml:"message,omitempty"`
	Match   *MatchSpec   `yaml:"match,omitempty"`
	Matches []MatchSpec  `yaml:"matches,omitempty"`
	Rows    []RowSpec    `yaml:"rows,omitempty"`
	Servers []ServerSpec `yaml:"servers,omitempty"`
	Welcome *WelcomeSpec `yaml:"welcome,omitempty"`
}

// MatchSpec describes a match entity.
type MatchSpec struct {
	ID      string `yaml:"id"`
	State   string `yaml:"state"`
	MyTurn  bool   `yaml:"my_turn,omitempty"`
	Changed int64  `yaml:"changed,omitempty"`
	Full    bool   `yaml:"full,omitempty"`
}

// RowSpec describes a scoreboard row.
type RowSpec struct {
	UserID    string `yaml:"user_id"`
	Nickname  string `yaml:"nickname,omitempty"`
	SortValue int64  `yaml:"sort_value"`
}

// ServerSpec describes a multiplayer server.
type ServerSpec struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port,omitempty"`
	Secure  bool   `yaml:"secure,omitempty"`
}

// WelcomeSpec describes a handshake response.
type WelcomeSpec struct {
	Token         string `yaml:"token,omitempty"`
	Authenticated bool   `yaml:"authenticated,omitempty"`
	Multiplayer   bool   `yaml:"multiplayer,omitempty"`
	News          bool   `yaml:"news,omitempty"`
}

// Step is one engine action.
type Step struct {
	// Do names the action, one of the Step* constants.
	Do string `yaml:"do"`

	// Args are the action arguments.
	Args map[string]any `yaml:"args,omitempty"`
}

// Step actions.
const (
	StepSetCredentials = "set_credentials"
	StepEnqueueScore   = "enqueue_score"
	StepDrain          = "drain"
	StepFlush          = "flush"
	StepAdvance        = "advance"
	StepFetchBoard     = "fetch_scoreboard"
	StepRefresh        = "refresh_matches"
	StepUpsertMatch    = "upsert_match"
	StepFetchFullMatch = "fetch_full_match"
	StepOpenMatch      = "open_match"
	StepQueueTurn      = "queue_turn"
	StepUploadTurn     = "upload_turn"
	StepResetTurn      = "reset_turn"
	StepWelcome        = "welcome"
	StepServers        = "servers"
	StepTick           = "tick"
	StepRestart        = "restart"
)

var knownSteps = map[string]bool{
	StepSetCredentials: true, StepEnqueueScore: true, StepDrain: true,
	StepFlush: true, StepAdvance: true, StepFetchBoard: true,
	StepRefresh: true, StepUpsertMatch: true, StepFetchFullMatch: true,
	StepOpenMatch: true, StepQueueTurn: true, StepUploadTurn: true,
	StepResetTurn: true, StepWelcome: true, StepServers: true,
	StepTick: true, StepRestart: true,
}

var knownOps = map[string]bool{
	remotetest.OpWelcome: true, remotetest.OpPostScore: true,
	remotetest.OpListMatches: true, remotetest.OpFetchMatch: true,
	remotetest.OpOpenMatch: true, remotetest.OpPostTurn: true,
	remotetest.OpLatestScores: true, remotetest.OpBestScores: true,
	remotetest.OpServers: true,
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Calls is the expected call order (call_order).
	Calls []string `yaml:"calls,omitempty"`

	// Op and Count are used by call_count.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Scores is the expected queue (queue).
	Scores []string `yaml:"scores,omitempty"`

	// IDs is the expected match list (matches).
	IDs []string `yaml:"ids,omitempty"`

	// Match is the expected pending turn (turn).
	Match string `yaml:"match,omitempty"`

	// Expect is a subset of status fields (status).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCallOrder = "call_order"
	AssertCallCount = "call_count"
	AssertQueue     = "queue"
	AssertMatches   = "matches"
	AssertTurn      = "turn"
	AssertStatus    = "status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads all *.yaml scenarios of dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for op := range s.Replies {
		if !knownOps[op] {
			return fmt.Errorf("replies: unknown operation %q", op)
		}
	}

	for i, step := range s.Steps {
		if step.Do == "" {
			return fmt.Errorf("steps[%d]: do is required", i)
		}
		if !knownSteps[step.Do] {
			return fmt.Errorf("steps[%d]: unknown step %q", i, step.Do)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertQueue, AssertMatches, AssertTurn:
	case AssertStatus:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
