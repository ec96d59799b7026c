package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/triviarena/triviarena-server/models"
)

// LivenessMonitor periodically probes every queued session with a heartbeat
// and prunes the ones that fail to reply in time. Each sweep runs inside the
// queue's critical section, so matchmaking and probing never share a
// session. A second, independent ticker pushes each queued session's current
// position as an informational line; that task is best-effort.
type LivenessMonitor struct {
	queue          *Queue
	interval       time.Duration
	timeout        time.Duration
	notifyInterval time.Duration

	probe   func(s *Session) bool // overridable for tests
	onPrune func(s *Session, pos int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLivenessMonitor(queue *Queue, interval, timeout, notifyInterval time.Duration) *LivenessMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	m := &LivenessMonitor{
		queue:          queue,
		interval:       interval,
		timeout:        timeout,
		notifyInterval: notifyInterval,
		ctx:            ctx,
		cancel:         cancel,
	}
	m.probe = m.pingSession
	return m
}

// SetOnPrune sets the callback invoked with a pruned session and the
// 1-based queue position it held when the sweep began. The session is
// already out of the queue when the callback runs.
func (m *LivenessMonitor) SetOnPrune(callback func(s *Session, pos int)) {
	m.onPrune = callback
}

// SetProbe overrides the heartbeat probe, for tests.
func (m *LivenessMonitor) SetProbe(probe func(s *Session) bool) {
	m.probe = probe
}

// Start launches the heartbeat and position-notify loops.
func (m *LivenessMonitor) Start() {
	m.wg.Add(2)
	go m.heartbeatLoop()
	go m.notifyLoop()
}

// Stop cancels both loops and waits for them to finish.
func (m *LivenessMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *LivenessMonitor) heartbeatLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.pingAll()
		case <-m.ctx.Done():
			return
		}
	}
}

// pingAll sweeps the queue under its lock: every queued session is probed
// concurrently, and the failures are removed before the lock is released.
// Match formation therefore never takes a session with a probe still
// waiting on its connection, and a session removed for a match is never
// probed, pruned or closed.
func (m *LivenessMonitor) pingAll() {
	for _, pr := range m.queue.Sweep(m.probe) {
		if m.onPrune != nil {
			m.onPrune(pr.Session, pr.Position)
		}
		log.Printf("[QUEUE] Client %s disconnected (%d waiting)", pr.Session.Username(), m.queue.Len())
		pr.Session.Close()
	}
}

// pingSession sends PING and waits up to the timeout for PONG.
func (m *LivenessMonitor) pingSession(s *Session) bool {
	if err := s.Send(models.Ping); err != nil {
		return false
	}
	reply, err := s.RecvTimeout(m.timeout)
	if err != nil || reply != models.Pong {
		return false
	}
	s.TouchResponse()
	return true
}

func (m *LivenessMonitor) notifyLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.notifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.notifyPositions()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *LivenessMonitor) notifyPositions() {
	for i, s := range m.queue.Snapshot() {
		// Write errors are left for the heartbeat to deal with.
		_ = s.Send(fmt.Sprintf("Your queue position: %d", i+1))
	}
}
