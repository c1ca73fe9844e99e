package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/backend"
	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/remote/remotetest"
	"github.com/roach88/blocksync/internal/store"
	"github.com/roach88/blocksync/internal/testutil"
)

// Harness executes one scenario.
//
// Each run uses a fresh in-memory store, an inline loop, a scripted client
// and a fake clock starting at testutil.Epoch, so traces are identical
// between runs.
type Harness struct {
	store  *store.Store
	fake   *remotetest.Fake
	clock  *testutil.FakeClock
	loop   *loop.Loop
	mgr    *backend.Manager
	logger *logrus.Entry
	result *Result
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open an in-memory store and store the scenario credentials
//  2. Script the remote replies
//  3. Build the engine and execute the steps in order
//  4. Capture the final state and evaluate assertions
//
// An error is returned only if the scenario cannot be executed; failed
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if c := scenario.Credentials; c != nil {
		if err := st.SaveCredentials(ctx, remote.Credentials{UserID: c.UserID, Secret: c.Secret}); err != nil {
			return nil, fmt.Errorf("store credentials: %w", err)
		}
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard) // Suppress logs in tests

	h := &Harness{
		store:  st,
		fake:   remotetest.New(),
		clock:  testutil.NewFakeClock(),
		logger: logrus.NewEntry(logger),
		result: NewResult(),
	}
	h.fake.Observe(func(c remotetest.Call) {
		h.result.add(EventCall, c.String(), nil, nil)
	})

	if err := h.script(scenario.Replies); err != nil {
		return nil, err
	}
	if err := h.start(ctx); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		h.result.add(EventStep, step.Do, step.Args, nil)
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Do, err)
		}
	}

	h.result.Final = h.finalState()

	for i, a := range scenario.Assertions {
		if err := evaluate(h.result, a); err != nil {
			h.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return h.result, nil
}

// start builds a fresh loop and Manager over the store, as after a restart.
func (h *Harness) start(ctx context.Context) error {
	h.loop = loop.New(loop.WithInlineWork(), loop.WithLogger(h.logger))
	mgr, err := backend.New(ctx, backend.Deps{
		Loop:     h.loop,
		Client:   h.fake,
		Settings: h.store,
		Clock:    h.clock,
		Logger:   h.logger,
		Platform: remote.PlatformDesktop,
		OS:       "linux",
		Version:  1,
	})
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	h.mgr = mgr
	return nil
}

func (h *Harness) script(replies map[string][]ReplySpec) error {
	for op, specs := range replies {
		for i, spec := range specs {
			r, err := toReply(op, spec)
			if err != nil {
				return fmt.Errorf("replies.%s[%d]: %w", op, i, err)
			}
			h.fake.Script(op, r)
		}
	}
	return nil
}

func toReply(op string, spec ReplySpec) (remotetest.Reply, error) {
	if spec.Status != 0 {
		return remotetest.Reply{Err: remote.NewError(spec.Status, spec.Message)}, nil
	}

	switch op {
	case remotetest.OpPostScore:
		return remotetest.Reply{}, nil
	case remotetest.OpListMatches:
		list := make([]*remote.MatchEntity, len(spec.Matches))
		for i, m := range spec.Matches {
			list[i] = m.entity()
		}
		return remotetest.Reply{Value: list}, nil
	case remotetest.OpFetchMatch, remotetest.OpOpenMatch, remotetest.OpPostTurn:
		if spec.Match == nil {
			return remotetest.Reply{}, fmt.Errorf("match is required")
		}
		return remotetest.Reply{Value: spec.Match.entity()}, nil
	case remotetest.OpLatestScores, remotetest.OpBestScores:
		rows := make([]remote.ScoreListEntry, len(spec.Rows))
		for i, r := range spec.Rows {
			rows[i] = remote.ScoreListEntry{UserID: r.UserID, Nickname: r.Nickname, SortValue: r.SortValue}
		}
		return remotetest.Reply{Value: rows}, nil
	case remotetest.OpServers:
		addrs := make([]remote.ServerAddress, len(spec.Servers))
		for i, s := range spec.Servers {
			addrs[i] = remote.ParseServerAddress(s.Name, s.Address, s.Port, s.Secure)
		}
		return remotetest.Reply{Value: addrs}, nil
	case remotetest.OpWelcome:
		w := spec.Welcome
		if w == nil {
			w = &WelcomeSpec{}
		}
		return remotetest.Reply{Value: &remote.WelcomeResponse{
			Token:                    w.Token,
			Authenticated:            w.Authenticated,
			MultiplayerUnlocked:      w.Multiplayer,
			CompetitionNewsAvailable: w.News,
		}}, nil
	}
	return remotetest.Reply{}, fmt.Errorf("unknown operation %q", op)
}

func (m MatchSpec) entity() *remote.MatchEntity {
	return &remote.MatchEntity{
		UUID:            m.ID,
		MatchState:      m.State,
		MyTurn:          m.MyTurn,
		LastChangeTime:  m.Changed,
		IsFullMatchInfo: m.Full,
	}
}

// execute runs one step on the loop's owning goroutine.
func (h *Harness) execute(ctx context.Context, step Step) error {
	a := args(step.Args)

	switch step.Do {
	case StepSetCredentials:
		return h.mgr.SetCredentials(ctx, a.str("user_id"), a.str("secret"))

	case StepEnqueueScore:
		h.mgr.Scores().Enqueue(remote.NewScore(a.num("sort_value"), a.str("mode"),
			remote.PlatformDesktop, "keyboard", "", "", remote.ScoreCounters{Score: int(a.num("sort_value"))}))

	case StepDrain:
		h.mgr.Scores().Drain()

	case StepFlush:
		h.loop.Flush()

	case StepAdvance:
		d, err := time.ParseDuration(a.str("duration"))
		if err != nil {
			return err
		}
		h.clock.Advance(d)

	case StepFetchBoard:
		b := h.mgr.Scoreboards().Get(a.str("mode"), a.flag("latest"))
		if b == nil {
			return fmt.Errorf("no scoreboard for mode %q", a.str("mode"))
		}
		var started bool
		if a.flag("forced") {
			started = b.FetchForced()
		} else {
			started = b.FetchIfExpired()
		}
		h.result.add(EventDone, step.Do, nil, map[string]any{"started": started})

	case StepRefresh:
		h.mgr.Matches().Refresh()

	case StepUpsertMatch:
		h.mgr.Matches().Upsert(&remote.MatchEntity{
			UUID:           a.str("id"),
			MatchState:     a.str("state"),
			MyTurn:         a.flag("my_turn"),
			LastChangeTime: a.num("changed"),
		})

	case StepFetchFullMatch:
		h.mgr.Matches().FetchFullMatchInfo(a.str("id"), h.done(step.Do))

	case StepOpenMatch:
		h.mgr.Matches().OpenNewMatch(a.str("opponent"), int(a.num("max_level")), h.done(step.Do))

	case StepQueueTurn:
		payload, err := json.Marshal(a["payload"])
		if err != nil {
			return err
		}
		h.mgr.Turns().QueueAndUpload(&remote.TurnRequest{MatchID: a.str("match"), Payload: payload})

	case StepUploadTurn:
		h.mgr.Turns().UploadPending(h.done(step.Do))

	case StepResetTurn:
		h.mgr.Turns().Reset()

	case StepWelcome:
		ttl := backend.DefaultWelcomeTTL
		if s := a.str("ttl"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			ttl = d
		}
		h.mgr.Session().RefreshIfExpired(ttl, backend.WelcomeParams{DrawnBlocks: a.num("drawn_blocks")})

	case StepServers:
		h.mgr.Servers().Addresses()

	case StepTick:
		h.mgr.Tick(backend.TickParams{})

	case StepRestart:
		h.loop.Stop()
		return h.start(ctx)

	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	return nil
}

// done records the outcome of an asynchronous step.
func (h *Harness) done(name string) backend.Callback[*remote.MatchEntity] {
	return func(m *remote.MatchEntity, err error) {
		result := map[string]any{}
		if err != nil {
			result["status"] = remote.StatusOf(err)
			result["error"] = remote.MessageOf(err)
		} else if m != nil {
			result["match"] = m.UUID
			result["state"] = m.MatchState
		}
		h.result.add(EventDone, name, nil, result)
	}
}

func (h *Harness) finalState() FinalState {
	queue := []string{}
	for _, s := range h.mgr.Scores().Queued() {
		queue = append(queue, fmt.Sprintf("%s/%d", s.GameMode, s.SortValue))
	}
	matches := []string{}
	for _, m := range h.mgr.Matches().List() {
		matches = append(matches, m.UUID)
	}
	turn := ""
	if t := h.mgr.Turns().Pending(); t != nil {
		turn = t.MatchID
	}
	return FinalState{
		Status:  h.mgr.Status(),
		Queue:   queue,
		Matches: matches,
		Turn:    turn,
	}
}

// args reads typed step arguments decoded from YAML.
type args map[string]any

func (a args) str(key string) string {
	if v, ok := a[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (a args) num(key string) int64 {
	switch v := a[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (a args) flag(key string) bool {
	b, _ := a[key].(bool)
	return b
}
