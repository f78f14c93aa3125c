package display

import (
	"context"
	"sync"
	"time"

	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
	"github.com/zmb3/spotify/v2"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultTickInterval    = time.Second
	DefaultEndOfTrackDelay = 1500 * time.Millisecond
	DefaultRetryBackoff    = 2 * time.Second
)

// Options configure a Controller. Zero values fall back to the defaults.
type Options struct {
	PollInterval    time.Duration
	TickInterval    time.Duration
	EndOfTrackDelay time.Duration

	// MaxRetries is how many delayed fetches follow a failed poll before
	// polling stops for good. Zero stops on the first failure.
	MaxRetries   int
	RetryBackoff time.Duration

	Scheduler Scheduler

	// OnChange receives a copy of the state after every update. It is called
	// without the controller lock held.
	OnChange func(State)
}

// Controller owns the display state and every timer that mutates it: the
// repeating poll, the progress tick, the end-of-track re-poll and the
// failure retry. There is at most one of each.
type Controller struct {
	fetcher Fetcher
	opts    Options
	sched   Scheduler

	mu      sync.Mutex
	ctx     context.Context
	state   State
	running bool

	poll   Timer
	tick   Timer
	repoll Timer
	retry  Timer

	// Generations let a callback that was already in flight when its timer
	// was replaced recognise that it is stale.
	pollGen   uint64
	tickGen   uint64
	repollGen uint64
	retryGen  uint64

	failures int
	issued   uint64
	applied  uint64
}

// NewController creates a controller in the loading state.
func NewController(fetcher Fetcher, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.EndOfTrackDelay <= 0 {
		opts.EndOfTrackDelay = DefaultEndOfTrackDelay
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}

	return &Controller{
		fetcher: fetcher,
		opts:    opts,
		sched:   opts.Scheduler,
		ctx:     context.Background(),
		state: State{
			Phase:            PhaseLoading,
			IsInitialLoading: true,
		},
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start arms the poll timer and fetches once right away. The fetch runs on
// the calling goroutine.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.running = true
	c.armPollLocked()
	c.mu.Unlock()

	log.Debugf("%s Polling every %v", logcolors.LogPoll, c.opts.PollInterval)
	c.fetch()
}

// Stop cancels every timer. Fetches still in flight are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.stopPollLocked()
	c.stopTickLocked()
	c.stopRepollLocked()
	c.stopRetryLocked()
}

// Retry is the manual retry action: back to loading, polling re-armed and
// an immediate fetch.
func (c *Controller) Retry() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.failures = 0
	c.stopRetryLocked()
	c.armPollLocked()
	c.state.Phase = PhaseLoading
	c.state.IsInitialLoading = true
	c.state.Error = ""
	snapshot := c.state
	c.mu.Unlock()

	c.notify(snapshot)
	c.fetch()
}

// ActiveTimers reports how many timers the controller currently holds.
func (c *Controller) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range []Timer{c.poll, c.tick, c.repoll, c.retry} {
		if t != nil {
			n++
		}
	}
	return n
}

func (c *Controller) fetch() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.issued++
	seq := c.issued
	ctx := c.ctx
	c.mu.Unlock()

	playing, err := c.fetcher.Fetch(ctx)

	c.mu.Lock()
	// A newer fetch already landed, or the controller was stopped meanwhile.
	if !c.running || seq < c.applied {
		c.mu.Unlock()
		return
	}
	c.applied = seq

	if err != nil {
		c.applyFailureLocked(err)
	} else {
		c.applySuccessLocked(playing)
	}
	snapshot := c.state
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Controller) applySuccessLocked(playing *spotify.CurrentlyPlaying) {
	c.failures = 0
	c.stopRetryLocked()
	if c.poll == nil {
		c.armPollLocked()
	}

	c.state.Phase = PhaseIdle
	c.state.IsInitialLoading = false
	c.state.Error = ""

	// A fresh snapshot replaces whatever the interpolator was doing.
	c.stopTickLocked()
	c.stopRepollLocked()

	if playing == nil || playing.Item == nil {
		c.state.CurrentTrack = nil
		c.state.DisplayProgressMs = 0
		return
	}

	c.state.CurrentTrack = playing
	c.state.DisplayProgressMs = int(playing.Progress)

	if playing.Playing {
		c.armTickLocked()
	}
}

func (c *Controller) applyFailureLocked(err error) {
	if IsClientFetchError(err) {
		log.Warnf("%s %v", logcolors.LogPoll, err)
	} else {
		log.Errorf("%s Unexpected fetch failure: %v", logcolors.LogPoll, err)
	}

	c.state.Phase = PhaseError
	c.state.IsInitialLoading = false
	c.state.Error = FetchErrorMessage

	c.stopPollLocked()
	c.stopTickLocked()
	c.stopRepollLocked()
	c.stopRetryLocked()

	c.failures++
	if c.failures > c.opts.MaxRetries {
		log.Infof("%s Polling stopped, waiting for a manual retry", logcolors.LogPoll)
		return
	}

	delay := c.opts.RetryBackoff << (c.failures - 1)
	log.Infof("%s Retry %d/%d in %v", logcolors.LogPoll, c.failures, c.opts.MaxRetries, delay)
	c.retryGen++
	gen := c.retryGen
	c.retry = c.sched.After(delay, func() {
		c.mu.Lock()
		if gen != c.retryGen || c.retry == nil {
			c.mu.Unlock()
			return
		}
		c.retry = nil
		c.mu.Unlock()
		c.fetch()
	})
}

func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.tickGen || c.tick == nil {
		c.mu.Unlock()
		return
	}

	track := c.state.Track()
	if track == nil {
		c.stopTickLocked()
		c.mu.Unlock()
		return
	}

	duration := int(track.Duration)
	c.state.DisplayProgressMs += int(c.opts.TickInterval / time.Millisecond)

	if c.state.DisplayProgressMs >= duration {
		c.state.DisplayProgressMs = duration
		c.stopTickLocked()
		c.armRepollLocked()
	}
	snapshot := c.state
	c.mu.Unlock()

	c.notify(snapshot)
}

func (c *Controller) notify(s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

func (c *Controller) armPollLocked() {
	c.stopPollLocked()
	c.pollGen++
	gen := c.pollGen
	c.poll = c.sched.Every(c.opts.PollInterval, func() {
		c.mu.Lock()
		stale := gen != c.pollGen || c.poll == nil
		c.mu.Unlock()
		if !stale {
			c.fetch()
		}
	})
}

func (c *Controller) armTickLocked() {
	c.stopTickLocked()
	c.tickGen++
	gen := c.tickGen
	c.tick = c.sched.Every(c.opts.TickInterval, func() {
		c.onTick(gen)
	})
}

func (c *Controller) armRepollLocked() {
	if c.repoll != nil {
		return
	}
	c.repollGen++
	gen := c.repollGen
	c.repoll = c.sched.After(c.opts.EndOfTrackDelay, func() {
		c.mu.Lock()
		if gen != c.repollGen || c.repoll == nil {
			c.mu.Unlock()
			return
		}
		c.repoll = nil
		c.mu.Unlock()
		c.fetch()
	})
}

func (c *Controller) stopPollLocked() {
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
}

func (c *Controller) stopTickLocked() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

func (c *Controller) stopRepollLocked() {
	if c.repoll != nil {
		c.repoll.Stop()
		c.repoll = nil
	}
}

func (c *Controller) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}
