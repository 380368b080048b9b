package service

import (
	"sync"
	"time"

	"github.com/noah-isme/admission-leads-api/internal/dto"
)

// Ticker is the timer driving per-second session progress.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

// NewTimeTicker is the production TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// CallSession tracks one staff member's in-progress call.
//
// Idle -> Start(lead) -> Active -> End -> Idle with the elapsed count retained. Elapsed
// seconds are measured from the session clock; the ticker pushes a progress view once per
// second whilst Active. Start always resets the count, so no time carries across leads.
type CallSession struct {
	ops sync.Mutex // serialises Start/End/Teardown

	mu        sync.Mutex
	clock     func() time.Time
	newTicker TickerFactory
	onTick    func(dto.CallSessionView)
	leadID    string
	startedAt time.Time
	elapsed   int
	active    bool
	stop      chan struct{}
	done      chan struct{}
}

// NewCallSession builds an idle session. onTick may be nil.
func NewCallSession(clock func() time.Time, newTicker TickerFactory, onTick func(dto.CallSessionView)) *CallSession {
	if clock == nil {
		clock = time.Now
	}
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &CallSession{clock: clock, newTicker: newTicker, onTick: onTick}
}

// Start opens a fresh session on leadID, stopping any running timer first.
func (s *CallSession) Start(leadID string) dto.CallSessionView {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.halt()

	stop, done := make(chan struct{}), make(chan struct{})
	ticker := s.newTicker(time.Second)

	s.mu.Lock()
	s.leadID = leadID
	s.startedAt = s.clock()
	s.elapsed = 0
	s.active = true
	s.stop, s.done = stop, done
	view := s.viewLocked()
	s.mu.Unlock()

	go s.run(ticker, stop, done)
	return view
}

// End stops the timer and freezes the elapsed count. The lead binding is kept.
func (s *CallSession) End() dto.CallSessionView {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.halt()
	return s.View()
}

// Teardown stops the timer and returns the session to a blank Idle state.
func (s *CallSession) Teardown() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.halt()

	s.mu.Lock()
	s.leadID = ""
	s.startedAt = time.Time{}
	s.elapsed = 0
	s.mu.Unlock()
}

// View returns the current state.
func (s *CallSession) View() dto.CallSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Active reports whether the timer is running.
func (s *CallSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *CallSession) viewLocked() dto.CallSessionView {
	view := dto.CallSessionView{LeadID: s.leadID, Active: s.active, ElapsedSeconds: s.elapsedLocked()}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		view.StartedAt = &started
	}
	return view
}

func (s *CallSession) elapsedLocked() int {
	if !s.active {
		return s.elapsed
	}
	d := s.clock().Sub(s.startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// halt must be called with ops held. It waits for the ticker goroutine to exit.
func (s *CallSession) halt() {
	s.mu.Lock()
	if s.active {
		s.elapsed = s.elapsedLocked()
		s.active = false
	}
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (s *CallSession) run(t Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
			if s.onTick == nil {
				continue
			}
			view := s.View()
			if view.Active {
				s.onTick(view)
			}
		}
	}
}
