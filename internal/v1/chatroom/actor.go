// Package chatroom implements the room actor: a single goroutine owning all
// mutable state for one room exclusively, reachable only through four
// bounded ingress channels. No mutex ever guards member state; every
// cross-goroutine mutation arrives as a message.
package chatroom

import (
	"time"

	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
)

// normalBatchSize bounds how many normal-priority messages the loop drains
// in one pass before yielding back to re-check the high-priority channel.
const normalBatchSize = 32

// Options configures a room actor's channel buffering and timing. Zero
// values fall back to the defaults below.
type Options struct {
	NormalBufferSize  int
	HighBufferSize    int
	ControlBufferSize int
	StatsBufferSize   int
	RateLimitInterval time.Duration
	CoalesceWindow    time.Duration
}

func (o Options) withDefaults() Options {
	if o.NormalBufferSize <= 0 {
		o.NormalBufferSize = 256
	}
	if o.HighBufferSize <= 0 {
		o.HighBufferSize = 64
	}
	if o.ControlBufferSize <= 0 {
		o.ControlBufferSize = 16
	}
	if o.StatsBufferSize <= 0 {
		o.StatsBufferSize = 16
	}
	if o.RateLimitInterval <= 0 {
		o.RateLimitInterval = 3 * time.Second
	}
	if o.CoalesceWindow <= 0 {
		o.CoalesceWindow = time.Second
	}
	return o
}

// Actor owns one room's state exclusively. Construct with NewActor and run
// its loop with Run; obtain the ingress handle to hand to connections and
// management endpoints with the Handle returned by NewActor.
type Actor struct {
	roomID types.RoomIDType
	sink   *store.Sink

	normalCh  chan NormalMessage
	highCh    chan HighPriorityMessage
	controlCh chan ControlMessage
	statsCh   chan StatsQuery
	doneCh    chan struct{}

	closing bool

	rateLimitInterval time.Duration
	coalesceWindow    time.Duration

	members     map[types.UserIDType]*connection
	admins      map[types.UserIDType]struct{}
	bans        map[types.UserIDType]struct{}
	mutes       map[types.UserIDType]struct{}
	lastSend    map[types.UserIDType]time.Time
	joinInstant map[types.UserIDType]time.Time

	startedAt    time.Time
	currentUsers int
	peakUsers    int
	totalJoins   int

	pendingJoins  []types.UserIDType
	pendingLeaves []types.UserIDType
}

// NewActor constructs a room actor preloaded with the admin and ban sets
// read from the store, and returns the send-only handle used to reach it.
func NewActor(roomID types.RoomIDType, sink *store.Sink, admins, bans map[types.UserIDType]struct{}, opts Options) (*Actor, Handle) {
	opts = opts.withDefaults()

	if admins == nil {
		admins = make(map[types.UserIDType]struct{})
	}
	if bans == nil {
		bans = make(map[types.UserIDType]struct{})
	}

	a := &Actor{
		roomID:            roomID,
		sink:              sink,
		normalCh:          make(chan NormalMessage, opts.NormalBufferSize),
		highCh:            make(chan HighPriorityMessage, opts.HighBufferSize),
		controlCh:         make(chan ControlMessage, opts.ControlBufferSize),
		statsCh:           make(chan StatsQuery, opts.StatsBufferSize),
		doneCh:            make(chan struct{}),
		rateLimitInterval: opts.RateLimitInterval,
		coalesceWindow:    opts.CoalesceWindow,
		members:           make(map[types.UserIDType]*connection),
		admins:            admins,
		bans:              bans,
		mutes:             make(map[types.UserIDType]struct{}),
		lastSend:          make(map[types.UserIDType]time.Time),
		joinInstant:       make(map[types.UserIDType]time.Time),
		startedAt:         time.Now(),
	}

	handle := Handle{
		Normal:  a.normalCh,
		High:    a.highCh,
		Control: a.controlCh,
		Stats:   a.statsCh,
		Done:    a.doneCh,
	}
	return a, handle
}

// Run services the actor's four ingress channels until all of them are
// closed, or until a Close control message is processed, then returns.
// Intended to be the entire body of the goroutine the room registry spawns
// per room. On every return path, Done is closed last so every connection's
// write pump observes the room has gone away and releases its socket.
func (a *Actor) Run() {
	metrics.ActiveRooms.Inc()
	defer metrics.ActiveRooms.Dec()
	defer metrics.RoomMembers.DeleteLabelValues(string(a.roomID))
	defer close(a.doneCh)

	highCh := a.highCh
	normalCh := a.normalCh
	controlCh := a.controlCh
	statsCh := a.statsCh

	coalesceTimer := time.NewTimer(a.coalesceWindow)
	defer coalesceTimer.Stop()

	for {
		if highCh == nil && normalCh == nil && controlCh == nil && statsCh == nil {
			return
		}

		a.drainHighPriority(highCh)

		select {
		case msg, ok := <-highCh:
			if !ok {
				highCh = nil
				continue
			}
			a.handleHigh(msg)

		case msg, ok := <-normalCh:
			if !ok {
				normalCh = nil
				continue
			}
			a.handleNormal(msg)
			a.drainNormalBatch(normalCh)

		case msg, ok := <-controlCh:
			if !ok {
				controlCh = nil
				continue
			}
			a.handleControl(msg)
			if a.closing {
				return
			}

		case q, ok := <-statsCh:
			if !ok {
				statsCh = nil
				continue
			}
			a.handleStats(q)

		case <-coalesceTimer.C:
			a.flushCoalesced()
			coalesceTimer.Reset(a.coalesceWindow)
		}
	}
}

// drainHighPriority services every high-priority message currently queued,
// without blocking, before the loop falls through to its blocking select.
// This is the manual bias the spec calls for in place of a priority queue.
func (a *Actor) drainHighPriority(highCh chan HighPriorityMessage) {
	if highCh == nil {
		return
	}
	for {
		select {
		case msg, ok := <-highCh:
			if !ok {
				return
			}
			a.handleHigh(msg)
		default:
			return
		}
	}
}

// drainNormalBatch drains up to normalBatchSize-1 further normal-priority
// messages non-blockingly, then returns so the outer loop can re-check
// high-priority ingress.
func (a *Actor) drainNormalBatch(normalCh chan NormalMessage) {
	for i := 1; i < normalBatchSize; i++ {
		select {
		case msg, ok := <-normalCh:
			if !ok {
				return
			}
			a.handleNormal(msg)
		default:
			return
		}
	}
}

func (a *Actor) handleNormal(msg NormalMessage) {
	start := time.Now()
	switch msg.Kind {
	case NormalJoin:
		a.handleJoin(msg.Join)
	case NormalLeave:
		a.handleLeave(msg.Leave)
	case NormalChat:
		a.handleChat(msg.Chat)
	case NormalMute:
		a.handleMute(msg.Mute)
	}
	metrics.ActorLoopIterationDuration.WithLabelValues(string(msg.Kind)).Observe(time.Since(start).Seconds())
}

func (a *Actor) handleHigh(msg HighPriorityMessage) {
	start := time.Now()
	switch msg.Kind {
	case HighKick:
		a.handleKick(msg.Kick)
	case HighCustomEvent:
		a.handleCustomEvent(msg.CustomEvent)
	}
	metrics.ActorLoopIterationDuration.WithLabelValues(string(msg.Kind)).Observe(time.Since(start).Seconds())
}

func (a *Actor) handleControl(msg ControlMessage) {
	switch msg.Kind {
	case ControlResetAdmins:
		a.handleResetAdmins(msg.ResetAdmins)
	case ControlUnbanUser:
		a.handleUnbanUser(msg.UnbanUser)
	case ControlClose:
		a.handleClose(msg.Close)
	}
}

func (a *Actor) setMembersGauge() {
	metrics.RoomMembers.WithLabelValues(string(a.roomID)).Set(float64(a.currentUsers))
}
