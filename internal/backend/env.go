package backend

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/blocksync/internal/clock"
	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
)

// Settings is the durable local storage used by the components.
// store.Store implements it.
type Settings interface {
	Credentials(ctx context.Context) (remote.Credentials, error)
	SaveCredentials(ctx context.Context, c remote.Credentials) error
	PendingTurn(ctx context.Context) (*remote.TurnRequest, error)
	SavePendingTurn(ctx context.Context, turn *remote.TurnRequest) error
	PendingScores(ctx context.Context) ([]*remote.Score, error)
	SavePendingScores(ctx context.Context, scores []*remote.Score) error
	SwapWelcomeTime(ctx context.Context, now time.Time) (time.Time, error)
}

// Callback receives the outcome of an asynchronous operation on the loop.
// A nil Callback is allowed wherever one is accepted.
type Callback[T any] func(T, error)

func (cb Callback[T]) call(v T, err error) {
	if cb != nil {
		cb(v, err)
	}
}

// env is the handle shared by all components of one Manager.
type env struct {
	loop     *loop.Loop
	client   remote.Client
	clock    clock.Clock
	settings Settings
	log      *logrus.Entry

	platform string
	os       string
	version  int

	// afterSuccess runs on the loop after a user-facing request succeeded.
	afterSuccess func()

	mu    sync.RWMutex
	creds remote.Credentials
}

func (e *env) logger(component string) *logrus.Entry {
	return e.log.WithField("component", component)
}

func (e *env) now() time.Time {
	return e.clock.Now()
}

func (e *env) credentials() remote.Credentials {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.creds
}

func (e *env) setCredentials(c remote.Credentials) {
	e.mu.Lock()
	e.creds = c
	e.mu.Unlock()
	e.client.SetCredentials(c)
}

func (e *env) hasUserID() bool {
	return !e.credentials().Empty()
}

func (e *env) requestSucceeded() {
	if e.afterSuccess != nil {
		e.afterSuccess()
	}
}

// dispatch runs call off the loop and hands its result to done on the loop.
func dispatch[T any](e *env, log *logrus.Entry, op string, call func(ctx context.Context) (T, error), done func(T, error)) {
	log.WithField("op", op).Debug("remote call")

	e.loop.Submit(func(ctx context.Context) loop.Task {
		v, err := call(ctx)
		return func() {
			if err != nil {
				log.WithFields(logrus.Fields{
					"op":     op,
					"status": remote.StatusOf(err),
				}).WithError(err).Debug("remote call failed")
			}
			done(v, err)
		}
	})
}
