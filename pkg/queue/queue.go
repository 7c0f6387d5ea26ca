// Package queue implements a per-tunnel FIFO asynchronous scheduler:
// operations against the same tunnel are serialised in submission order,
// while operations against different tunnels run concurrently, and each
// submission returns a handle the caller can block on independently.
// Submitting against a Group target (CallGroup, ConnectGroup) fans out
// into one per-tunnel operation per member, each still serialised through
// that member's own lane, joined into a single GroupHandle.
package queue

import (
	"context"
	"sync"

	"github.com/tetherhq/tether/pkg/codec"
	"github.com/tetherhq/tether/pkg/group"
	"github.com/tetherhq/tether/pkg/tunnel"
)

// Handle is a single-assignment future for one queued operation's result:
// a value is set exactly once, and Wait blocks until it is (or ctx ends).
type Handle struct {
	done  chan struct{}
	value codec.Value
	err   error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) complete(v codec.Value, err error) {
	h.value = v
	h.err = err
	close(h.done)
}

// Wait blocks until the operation completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (codec.Value, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		return codec.Value{}, ctx.Err()
	}
}

// Done reports whether the handle has already completed, without
// blocking — the Go analogue of AsyncResult.value's NotCompleted check.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

type job struct {
	run func() (codec.Value, error)
	h   *Handle
}

// perTunnel holds one tunnel's pending FIFO plus the goroutine draining
// it, so operations against the same tunnel never run concurrently with
// each other even though the Queue itself is shared by many tunnels.
type perTunnel struct {
	mu      sync.Mutex
	pending []job
	running bool
}

// Queue multiplexes asynchronous operations across many tunnels, running
// each tunnel's own operations strictly in submission order while letting
// different tunnels proceed independently: per-tunnel FIFO, globally
// concurrent.
type Queue struct {
	mu    sync.Mutex
	lanes map[*tunnel.Tunnel]*perTunnel
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{lanes: make(map[*tunnel.Tunnel]*perTunnel)}
}

func (q *Queue) laneFor(t *tunnel.Tunnel) *perTunnel {
	q.mu.Lock()
	defer q.mu.Unlock()
	lane, ok := q.lanes[t]
	if !ok {
		lane = &perTunnel{}
		q.lanes[t] = lane
	}
	return lane
}

// Call enqueues a CALL against t, returning immediately with a Handle the
// caller can Wait on. Calls enqueued against the same tunnel execute in
// the order Call was invoked; calls against different tunnels may run
// concurrently.
func (q *Queue) Call(ctx context.Context, t *tunnel.Tunnel, name string, args codec.Value) *Handle {
	return q.enqueue(t, func() (codec.Value, error) {
		return t.Call(ctx, name, args)
	})
}

// Connect enqueues a Connect against t.
func (q *Queue) Connect(ctx context.Context, t *tunnel.Tunnel) *Handle {
	return q.enqueue(t, func() (codec.Value, error) {
		return codec.Value{}, t.Connect(ctx)
	})
}

func (q *Queue) enqueue(t *tunnel.Tunnel, run func() (codec.Value, error)) *Handle {
	h := newHandle()
	lane := q.laneFor(t)

	lane.mu.Lock()
	lane.pending = append(lane.pending, job{run: run, h: h})
	shouldStart := !lane.running
	if shouldStart {
		lane.running = true
	}
	lane.mu.Unlock()

	if shouldStart {
		go q.drain(lane)
	}
	return h
}

func (q *Queue) drain(lane *perTunnel) {
	for {
		lane.mu.Lock()
		if len(lane.pending) == 0 {
			lane.running = false
			lane.mu.Unlock()
			return
		}
		j := lane.pending[0]
		lane.pending = lane.pending[1:]
		lane.mu.Unlock()

		val, err := j.run()
		j.h.complete(val, err)
	}
}

// GroupHandle is a single-assignment future for an operation queued
// against every member of a Group: it completes once each member's own
// per-tunnel Handle has completed, joining their results into one
// group.GroupResult.
type GroupHandle struct {
	done   chan struct{}
	result *group.GroupResult
}

func newGroupHandle() *GroupHandle {
	return &GroupHandle{done: make(chan struct{})}
}

func (h *GroupHandle) complete(result *group.GroupResult) {
	h.result = result
	close(h.done)
}

// Wait blocks until every member's operation has completed or ctx is done.
func (h *GroupHandle) Wait(ctx context.Context) (*group.GroupResult, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether every member operation has completed, without
// blocking.
func (h *GroupHandle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// CallGroup enqueues a CALL against every member tunnel of grp. Each
// member's CALL is submitted to that tunnel's own per-tunnel lane, so it
// still serialises with any other operation queued against that same
// tunnel (directly, or as a member of some other Group); a join operation
// then waits on every member's Handle and writes the combined result to
// the returned GroupHandle once the last one finishes.
func (q *Queue) CallGroup(ctx context.Context, grp *group.Group, name string, args codec.Value) *GroupHandle {
	return q.enqueueGroup(grp, func(t *tunnel.Tunnel) (codec.Value, error) {
		return t.Call(ctx, name, args)
	})
}

// ConnectGroup enqueues a Connect against every member tunnel of grp.
func (q *Queue) ConnectGroup(ctx context.Context, grp *group.Group) *GroupHandle {
	return q.enqueueGroup(grp, func(t *tunnel.Tunnel) (codec.Value, error) {
		return codec.Value{}, t.Connect(ctx)
	})
}

// enqueueGroup submits one per-tunnel operation per member of grp into
// that member's own lane via the ordinary Queue.enqueue path, then spawns
// the join goroutine that collects every member Handle's result into a
// single group.GroupResult and writes it to the returned GroupHandle.
func (q *Queue) enqueueGroup(grp *group.Group, run func(*tunnel.Tunnel) (codec.Value, error)) *GroupHandle {
	hosts := grp.Hosts()
	tunnels := make([]*tunnel.Tunnel, 0, len(hosts))
	for _, h := range hosts {
		if t, ok := grp.Tunnel(h); ok {
			tunnels = append(tunnels, t)
		}
	}

	members := make([]*Handle, len(tunnels))
	for i, t := range tunnels {
		members[i] = q.enqueue(t, func() (codec.Value, error) {
			return run(t)
		})
	}

	gh := newGroupHandle()
	go func() {
		results := make([]group.Result, len(tunnels))
		for i, t := range tunnels {
			val, err := members[i].Wait(context.Background())
			results[i] = group.Result{Host: t.Host, Value: val, Err: err}
		}
		gh.complete(group.NewGroupResult(results))
	}()
	return gh
}

// Len reports how many operations against t are queued (including the one
// currently running, if any), for diagnostics.
func (q *Queue) Len(t *tunnel.Tunnel) int {
	q.mu.Lock()
	lane, ok := q.lanes[t]
	q.mu.Unlock()
	if !ok {
		return 0
	}
	lane.mu.Lock()
	defer lane.mu.Unlock()
	n := len(lane.pending)
	if lane.running {
		n++
	}
	return n
}
