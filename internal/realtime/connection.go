package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateOpen State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type outboundFrame struct {
	frame Frame
	// bestEffort frames never terminate the connection when the write fails.
	bestEffort bool
}

// Connection is one viewer's push channel on one document.
//
// Frames queued while the connection is still open (its init snapshot not yet
// loaded) are held until activate puts the init frame in front of them. Once
// active, a backlog above limit is tolerated for grace; a viewer whose backlog
// stays above limit longer than that has fallen behind and is dropped.
type Connection struct {
	id         string
	documentID int64
	userID     *int64
	sink       Sink
	openedAt   time.Time
	limit      int
	grace      time.Duration

	state     atomic.Int32
	activated chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	wake      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	queue        []outboundFrame
	laggingSince time.Time
}

func newConnection(id string, documentID int64, userID *int64, sink Sink, limit int, grace time.Duration) *Connection {
	if limit <= 0 {
		limit = 1
	}
	var uid *int64
	if userID != nil {
		v := *userID
		uid = &v
	}
	c := &Connection{
		id:         id,
		documentID: documentID,
		userID:     uid,
		sink:       sink,
		openedAt:   time.Now(),
		limit:      limit,
		grace:      grace,
		activated:  make(chan struct{}),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
	c.state.Store(int32(StateOpen))
	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) DocumentID() int64 {
	return c.documentID
}

// UserID returns the viewer's user, or false for anonymous viewers.
func (c *Connection) UserID() (int64, bool) {
	if c.userID == nil {
		return 0, false
	}
	return *c.userID, true
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) OpenedAt() time.Time {
	return c.openedAt
}

// Done is closed once the connection reaches StateClosed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Stopped is closed when the writer goroutine has returned; after that the
// sink is never written again.
func (c *Connection) Stopped() <-chan struct{} {
	return c.stopped
}

// activate moves the connection to StateActive with init (if any) as the
// first frame, ahead of everything queued while it was open.
func (c *Connection) activate(init *outboundFrame) bool {
	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateActive)) {
		c.mu.Unlock()
		return false
	}
	if init != nil {
		c.queue = append([]outboundFrame{*init}, c.queue...)
	}
	if len(c.queue) > c.limit {
		c.laggingSince = time.Now()
	}
	c.mu.Unlock()

	close(c.activated)
	c.signal()
	return true
}

// markClosed moves the connection to StateClosed. Only the first call returns true.
func (c *Connection) markClosed() bool {
	first := false
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(StateClosed))
		c.queue = nil
		c.mu.Unlock()
		close(c.done)
		first = true
	})
	return first
}

// enqueue never blocks. It fails with errQueueFull once the viewer has stayed
// more than limit frames behind for longer than grace.
func (c *Connection) enqueue(f outboundFrame) error {
	c.mu.Lock()
	switch State(c.state.Load()) {
	case StateClosed:
		c.mu.Unlock()
		return errConnectionClosed
	case StateActive:
		if len(c.queue) >= c.limit {
			now := time.Now()
			if c.laggingSince.IsZero() {
				c.laggingSince = now
			} else if now.Sub(c.laggingSince) > c.grace {
				c.mu.Unlock()
				return errQueueFull
			}
		}
	}
	c.queue = append(c.queue, f)
	c.mu.Unlock()

	c.signal()
	return nil
}

func (c *Connection) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) next() (outboundFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return outboundFrame{}, false
	}
	f := c.queue[0]
	c.queue[0] = outboundFrame{}
	c.queue = c.queue[1:]
	if len(c.queue) <= c.limit {
		c.laggingSince = time.Time{}
	}
	return f, true
}

// writeLoop is the only goroutine writing to the sink, which keeps frames in
// the order they were queued. It starts writing once the connection is
// active. onFailure is called at most once.
func (c *Connection) writeLoop(onFailure func(err error), onBestEffortFailure func(f Frame, err error)) {
	defer close(c.stopped)

	select {
	case <-c.activated:
	case <-c.done:
		return
	}

	for {
		f, ok := c.next()
		if !ok {
			select {
			case <-c.done:
				return
			case <-c.wake:
				continue
			}
		}

		select {
		case <-c.done:
			return
		default:
		}

		if err := c.sink.Send(f.frame); err != nil {
			if f.bestEffort {
				onBestEffortFailure(f.frame, err)
				continue
			}
			onFailure(err)
			return
		}
	}
}
