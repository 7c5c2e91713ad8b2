// Package scheduler implements the main execution loop of spec §4.G: it
// walks a tool's graph from entry to exit one node at a time, enforcing
// limits, honoring breakpoints/pause/step/stop, dispatching hook
// callbacks, and building telemetry.
package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// Status is one state of the controller's state machine: not-started →
// running → paused ⇄ running → finished | error | stopped.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
	StatusError      Status = "error"
	StatusStopped    Status = "stopped"
)

// Hooks are the scheduler callbacks an invocation may register. Any of
// them may be nil.
type Hooks struct {
	// OnNodeStart is called before a node executes. Returning false is
	// treated as a pause request at that node.
	OnNodeStart func(nodeID string, ctx map[string]any) bool
	// OnNodeComplete is called with the context snapshot taken before
	// execution, the node's output, and its measured duration.
	OnNodeComplete func(nodeID string, input map[string]any, output any, duration time.Duration)
	OnNodeError    func(nodeID string, err error)
	OnPause        func(nodeID string)
	OnResume       func(nodeID string)
}

// Options configures one executeTool invocation (spec §6).
type Options struct {
	Hooks           Hooks
	Breakpoints     []string
	EnableTelemetry bool
	StartPaused     bool
}

// Controller is the pause/resume/step/stop state machine for one
// in-flight invocation. It is safe for concurrent use: the scheduler
// goroutine advances it at node boundaries while an owning goroutine
// calls Pause/Resume/Step/Stop.
type Controller struct {
	mu   sync.Mutex
	cond *sync.Cond

	status         Status
	currentNodeID  string
	pauseRequested bool
	stepPending    bool
	stopRequested  bool
	breakpoints    map[string]bool
	hooks          Hooks
}

func newController(opts Options) *Controller {
	c := &Controller{
		status:         StatusNotStarted,
		pauseRequested: opts.StartPaused,
		breakpoints:    make(map[string]bool, len(opts.Breakpoints)),
		hooks:          opts.Hooks,
	}
	c.cond = sync.NewCond(&c.mu)
	for _, id := range opts.Breakpoints {
		c.breakpoints[id] = true
	}
	return c
}

// Status returns the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// CurrentNodeID returns the id of the node the scheduler is at or was
// most recently at.
func (c *Controller) CurrentNodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentNodeID
}

// Pause requests a pause at the next node boundary. Valid only while
// running.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusRunning {
		return fmt.Errorf("pause: controller is %s, not running", c.status)
	}
	c.pauseRequested = true
	return nil
}

// Resume wakes a paused scheduler. Valid only while paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPaused {
		return fmt.Errorf("resume: controller is %s, not paused", c.status)
	}
	c.status = StatusRunning
	c.cond.Broadcast()
	return nil
}

// Step resumes a paused scheduler and arranges for it to pause again
// after exactly one more node executes. Valid only while paused.
func (c *Controller) Step() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusPaused {
		return fmt.Errorf("step: controller is %s, not paused", c.status)
	}
	c.stepPending = true
	c.status = StatusRunning
	c.cond.Broadcast()
	return nil
}

// Stop requests cancellation, taking effect immediately in status and at
// the next cooperative point in the scheduler loop. Valid while running
// or paused.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusRunning && c.status != StatusPaused {
		return fmt.Errorf("stop: controller is %s, cannot stop", c.status)
	}
	c.stopRequested = true
	c.status = StatusStopped
	c.cond.Broadcast()
	return nil
}

// awaitTurn implements scheduler steps 2-3: stop check, then breakpoint/
// pause check. It blocks while paused and returns false once a stop has
// been observed, in which case the caller must not execute nodeID.
func (c *Controller) awaitTurn(nodeID string) bool {
	c.mu.Lock()
	c.currentNodeID = nodeID

	if c.stopRequested {
		c.mu.Unlock()
		return false
	}

	paused := false
	if c.breakpoints[nodeID] || c.pauseRequested {
		c.pauseRequested = false
		c.status = StatusPaused
		paused = true
		hook := c.hooks.OnPause
		c.mu.Unlock()
		if hook != nil {
			hook(nodeID)
		}
		c.mu.Lock()
		for c.status == StatusPaused {
			c.cond.Wait()
		}
		if c.stopRequested {
			c.mu.Unlock()
			return false
		}
	}
	c.status = StatusRunning
	resumeHook := c.hooks.OnResume
	c.mu.Unlock()

	if paused && resumeHook != nil {
		resumeHook(nodeID)
	}
	return true
}

// requestPause is used when onNodeStart returns false: it is treated as a
// pause request using the same wait loop as the breakpoint check.
func (c *Controller) requestPause() {
	c.mu.Lock()
	c.pauseRequested = true
	c.mu.Unlock()
}

// markStepComplete implements scheduler step 7: a pending single-step
// request becomes the pause request observed at the next node boundary.
func (c *Controller) markStepComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stepPending {
		c.stepPending = false
		c.pauseRequested = true
	}
}

// finish sets a terminal status, unless stop() already finalized
// "stopped" (stop() is allowed to win a race against the scheduler
// reaching its own terminal determination).
func (c *Controller) finish(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusStopped {
		c.status = status
	}
	c.cond.Broadcast()
}
