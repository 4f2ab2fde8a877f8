package service

import (
	"AgentOffice/backend/go/internal/models"
	"sync"
)

// cycle accumulates worker results between the manager's thinking and idle
// transitions of one pipeline task.
type cycle struct {
	results []models.WorkerResult
}

// cycles tracks in-flight task cycles by pipeline task id. current is the
// task dispatched last; it is only used for callbacks that carry no taskId.
// Id 0 holds results of cycles the service did not dispatch itself.
type cycles struct {
	mu      sync.Mutex
	byTask  map[int64]*cycle
	current int64
}

func newCycles() *cycles {
	return &cycles{byTask: make(map[int64]*cycle)}
}

// begin registers a freshly dispatched task and makes it current.
func (c *cycles) begin(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTask[taskID] = &cycle{}
	c.current = taskID
}

// resolve picks the task a callback refers to.
func (c *cycles) resolve(explicit *int64) int64 {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Current is the last dispatched task id, 0 if none.
func (c *cycles) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// add records a worker result unless the same (agent, result) pair is
// already present. It reports whether the result was added.
func (c *cycles) add(taskID int64, r models.WorkerResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cy, ok := c.byTask[taskID]
	if !ok {
		cy = &cycle{}
		c.byTask[taskID] = cy
	}
	for _, have := range cy.results {
		if have.Agent == r.Agent && have.Result == r.Result {
			return false
		}
	}
	cy.results = append(cy.results, r)
	return true
}

// reset discards the results of taskID; a new cycle starts.
func (c *cycles) reset(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTask[taskID] = &cycle{}
}

// take hands the results of taskID to the completion step and forgets them.
func (c *cycles) take(taskID int64) []models.WorkerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	cy, ok := c.byTask[taskID]
	if !ok {
		return nil
	}
	delete(c.byTask, taskID)
	return cy.results
}

// results returns a copy of the results accumulated for taskID.
func (c *cycles) results(taskID int64) []models.WorkerResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	cy, ok := c.byTask[taskID]
	if !ok {
		return nil
	}
	return append([]models.WorkerResult(nil), cy.results...)
}

// forget drops a cycle that will never complete, e.g. after a timeout.
func (c *cycles) forget(taskID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTask, taskID)
}

func (c *cycles) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byTask)
}
