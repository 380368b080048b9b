package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
	"github.com/noah-isme/admission-leads-api/pkg/phone"
)

type callLeadStore interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	Upsert(ctx context.Context, id string, patch models.LeadPatch) (int, error)
}

type dialLinker interface {
	Link(raw string) phone.Link
}

// CallProgressFunc receives per-second progress for an actor's running call.
type CallProgressFunc func(actorID string, view dto.CallSessionView)

// CallServiceConfig tunes the call gate and its clocks.
type CallServiceConfig struct {
	MinValidDuration time.Duration
	Clock            func() time.Time
	Tickers          TickerFactory
}

// CallService keeps one call session slot per staff member.
type CallService struct {
	leads    callLeadStore
	dialer   dialLinker
	recorder *ActivityRecorder
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      CallServiceConfig

	mu       sync.Mutex
	sessions map[string]*CallSession
	progress CallProgressFunc
}

// NewCallService constructs the session registry.
func NewCallService(leads callLeadStore, dialer dialLinker, recorder *ActivityRecorder, metrics *MetricsService, logger *zap.Logger, cfg CallServiceConfig) *CallService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinValidDuration <= 0 {
		cfg.MinValidDuration = 20 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Tickers == nil {
		cfg.Tickers = NewTimeTicker
	}
	return &CallService{
		leads:    leads,
		dialer:   dialer,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*CallSession),
	}
}

// MinValidDuration is the engagement gate shared by classification and audits.
func (s *CallService) MinValidDuration() time.Duration {
	return s.cfg.MinValidDuration
}

// OnProgress installs the sink for per-second progress views.
func (s *CallService) OnProgress(fn CallProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

// Start opens a session for actor on leadID, discarding any previous session.
func (s *CallService) Start(ctx context.Context, actor models.Actor, leadID string) (*dto.StartCallResponse, error) {
	lead, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Internal(err, "failed to load lead")
	}
	if !canWorkLead(actor, lead) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lead is not assigned to you")
	}

	view := s.sessionFor(actor.ID).Start(lead.ID)
	s.publishActive()

	var dial dto.DialLink
	if s.dialer != nil {
		link := s.dialer.Link(lead.Phone)
		dial = dto.DialLink{URI: link.URI, E164: link.E164, Valid: link.Valid}
	}
	return &dto.StartCallResponse{Session: view, Dial: dial}, nil
}

// End stops actor's timer. A gated call on a lead that is already terminal is re-recorded
// as a re-contact without changing its stage.
func (s *CallService) End(ctx context.Context, actor models.Actor) (*dto.CallSessionView, error) {
	session := s.lookup(actor.ID)
	if session == nil || session.View().LeadID == "" {
		return nil, appErrors.ErrNoActiveCall
	}
	view := session.End()
	s.publishActive()

	if time.Duration(view.ElapsedSeconds)*time.Second < s.cfg.MinValidDuration {
		return &view, nil
	}
	lead, err := s.leads.FindByID(ctx, view.LeadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &view, nil
		}
		return nil, appErrors.Internal(err, "failed to load lead")
	}
	if !lead.Stage.Terminal() {
		return &view, nil
	}

	verified := true
	at := s.cfg.Clock().UTC()
	duration := view.ElapsedSeconds
	if _, err := s.leads.Upsert(ctx, lead.ID, models.LeadPatch{
		CallVerified:  &verified,
		CallTimestamp: &at,
		CallDuration:  &duration,
	}); err != nil {
		return nil, appErrors.Internal(err, "failed to record call")
	}
	s.recorder.Record(ctx, actor, models.ActionCallRecorded, fmt.Sprintf("re-contact %s for %ds", lead.Name, duration))
	s.recorder.Changed(ctx, changefeed.CollectionLeads)
	return &view, nil
}

// Status returns actor's current session, a blank view when none exists.
func (s *CallService) Status(actor models.Actor) dto.CallSessionView {
	session := s.lookup(actor.ID)
	if session == nil {
		return dto.CallSessionView{}
	}
	return session.View()
}

// Current reports actor's session when it is bound to a lead.
func (s *CallService) Current(actorID string) (dto.CallSessionView, bool) {
	session := s.lookup(actorID)
	if session == nil {
		return dto.CallSessionView{}, false
	}
	view := session.View()
	return view, view.LeadID != ""
}

// Teardown stops and forgets actorID's session. Safe when none exists.
func (s *CallService) Teardown(actorID string) {
	s.mu.Lock()
	session := s.sessions[actorID]
	delete(s.sessions, actorID)
	s.mu.Unlock()
	if session != nil {
		session.Teardown()
		s.publishActive()
	}
}

// Shutdown stops every running timer.
func (s *CallService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*CallSession)
	s.mu.Unlock()
	for _, session := range sessions {
		session.Teardown()
	}
	s.metrics.SetActiveCalls(0)
	s.logger.Info("call sessions stopped", zap.Int("sessions", len(sessions)))
}

// ActiveCount reports sessions with a running timer.
func (s *CallService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, session := range s.sessions {
		if session.Active() {
			n++
		}
	}
	return n
}

func (s *CallService) lookup(actorID string) *CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[actorID]
}

func (s *CallService) sessionFor(actorID string) *CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[actorID]; ok {
		return session
	}
	session := NewCallSession(s.cfg.Clock, s.cfg.Tickers, func(view dto.CallSessionView) {
		s.mu.Lock()
		progress := s.progress
		s.mu.Unlock()
		if progress != nil {
			progress(actorID, view)
		}
	})
	s.sessions[actorID] = session
	return session
}

func (s *CallService) publishActive() {
	s.metrics.SetActiveCalls(s.ActiveCount())
}

// canWorkLead reports whether actor may call or classify lead.
func canWorkLead(actor models.Actor, lead *models.Lead) bool {
	switch {
	case actor.Admin():
		return true
	case actor.Role == models.RoleDepartmentHead:
		return lead.AssignedHeadID != nil && *lead.AssignedHeadID == actor.ID
	case actor.Role == models.RoleTeacher:
		return lead.AssignedTeacherID != nil && *lead.AssignedTeacherID == actor.ID
	default:
		return false
	}
}
