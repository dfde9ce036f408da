// Package autosave debounces editor changes for one chapter into autosave
// requests.
//
// A Coordinator moves between four states:
//
//	Idle        nothing to save
//	PendingSave a change is waiting for the quiescence window to elapse
//	Saving      a request is in flight
//	Error       the last request failed; the next change re-arms the timer
//
// Every change re-arms the timer, so a burst of edits produces one request
// carrying the content current when the timer fires. Content equal to the
// last successfully saved content is never sent. At most one request is in
// flight per coordinator, and failed requests are not retried.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/models"
)

// DefaultDelay is the quiescence window between the last change and the save.
const DefaultDelay = 5 * time.Second

// ErrClosed is returned by SaveNow after Close.
var ErrClosed = errors.New("autosave: coordinator closed")

type State int

const (
	Idle State = iota
	PendingSave
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingSave:
		return "pending"
	case Saving:
		return "saving"
	case Error:
		return "error"
	}
	return "unknown"
}

// Saver performs the autosave request.
type Saver interface {
	Autosave(ctx context.Context, chapterID, content string) (*models.AutosaveResult, error)
}

type Option func(*Coordinator)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithBaseline sets the content known to be persisted already.
func WithBaseline(content string) Option {
	return func(c *Coordinator) { c.baseline = content }
}

// WithStateHook registers fn to observe state transitions. fn is called
// without the coordinator's lock held, possibly from a timer goroutine, and
// may call the coordinator's methods.
func WithStateHook(fn func(State)) Option {
	return func(c *Coordinator) { c.hook = fn }
}

// WithRequestTimeout bounds requests started by the timer.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.requestTimeout = d }
}

type Coordinator struct {
	chapterID      string
	saver          Saver
	delay          time.Duration
	requestTimeout time.Duration
	hook           func(State)

	mu       sync.Mutex
	state    State
	err      error
	baseline string // last content the server acknowledged
	latest   string
	timer    *time.Timer
	gen      uint64 // identifies the armed timer
	inFlight chan struct{} // closed when the current request completes
	deferred bool          // the timer fired while a request was in flight
	savedAt  time.Time // zero until a request succeeds
	words    int
	closed   bool
	notify   []State
}

func New(chapterID string, saver Saver, opts ...Option) *Coordinator {
	c := &Coordinator{
		chapterID:      chapterID,
		saver:          saver,
		delay:          DefaultDelay,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.latest = c.baseline
	return c
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last failed request. It is cleared whenever
// the coordinator returns to Idle.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// LastSavedAt reports when the server last stored this chapter's content.
func (c *Coordinator) LastSavedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedAt
}

// Change records new editor content and restarts the quiescence window.
func (c *Coordinator) Change(content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.latest = content
	c.stopTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
	if c.state != Saving {
		c.setState(PendingSave)
	}
	c.unlockAndNotify()
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	// A timer stopped too late to prevent its callback is stale.
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.inFlight != nil {
		c.deferred = true
		c.mu.Unlock()
		return
	}
	content, ok := c.beginLocked()
	c.unlockAndNotify()
	if ok {
		go c.run(content)
	}
}

// beginLocked starts a request for the latest content unless it is already
// saved. It reports whether the caller must perform the request.
func (c *Coordinator) beginLocked() (string, bool) {
	content := c.latest
	if content == c.baseline {
		if c.timer != nil {
			c.setState(PendingSave)
		} else {
			c.setState(Idle)
		}
		return "", false
	}
	c.inFlight = make(chan struct{})
	c.setState(Saving)
	return content, true
}

func (c *Coordinator) run(content string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()
	res, err := c.saver.Autosave(ctx, c.chapterID, content)
	c.finish(content, res, err)
}

// finish records the outcome of a request and starts the deferred one, if any.
func (c *Coordinator) finish(content string, res *models.AutosaveResult, err error) {
	c.mu.Lock()
	close(c.inFlight)
	c.inFlight = nil

	log := logrus.WithField("chapter_id", c.chapterID)
	if err != nil {
		c.err = err
		c.setState(Error)
		log.WithError(err).Warn("autosave failed")
	} else {
		c.err = nil
		c.baseline = content
		if res != nil {
			c.savedAt = res.SavedAt
			c.words = res.WordCount
		}
		c.setState(Idle)
		log.Debug("autosaved")
	}

	var next string
	var start bool
	switch {
	case c.closed:
	case c.deferred:
		c.deferred = false
		next, start = c.beginLocked()
	case c.timer != nil:
		c.setState(PendingSave)
	}
	c.unlockAndNotify()
	if start {
		go c.run(next)
	}
}

// SaveNow saves content immediately, bypassing the timer. It waits for an
// in-flight request to finish first. Content the coordinator has already seen
// stored is answered locally with the recorded save time and word count;
// otherwise the server decides whether to skip.
func (c *Coordinator) SaveNow(ctx context.Context, content string) (*models.AutosaveResult, error) {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		c.latest = content
		c.stopTimerLocked()
		c.deferred = false
		done := c.inFlight
		if done == nil {
			break
		}
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}

	if content == c.baseline && !c.savedAt.IsZero() {
		res := &models.AutosaveResult{SavedAt: c.savedAt, WordCount: c.words, Skipped: true}
		c.setState(Idle)
		c.unlockAndNotify()
		return res, nil
	}
	c.inFlight = make(chan struct{})
	c.setState(Saving)
	c.unlockAndNotify()

	res, err := c.saver.Autosave(ctx, c.chapterID, content)
	c.finish(content, res, err)
	return res, err
}

// Close cancels any pending save. A request already in flight completes
// but triggers nothing further.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.deferred = false
	c.stopTimerLocked()
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Coordinator) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if s == Idle {
		c.err = nil
	}
	if c.hook != nil {
		c.notify = append(c.notify, s)
	}
}

// unlockAndNotify releases mu and delivers queued transitions to the hook.
func (c *Coordinator) unlockAndNotify() {
	pending := c.notify
	c.notify = nil
	if len(pending) == 0 {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	for _, s := range pending {
		c.hook(s)
	}
}
