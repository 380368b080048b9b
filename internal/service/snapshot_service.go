package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
)

const (
	snapshotLogLimit    = 200
	subscriberBuffer    = 16
	snapshotLoadTimeout = 15 * time.Second
)

type snapshotLeadSource interface {
	ListAll(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
}

type snapshotStaffSource interface {
	ListAll(ctx context.Context) ([]models.Staff, error)
}

type snapshotLogSource interface {
	Recent(ctx context.Context, limit int) ([]models.SystemLog, error)
}

type noticeSubscriber interface {
	Subscribe(ctx context.Context) (<-chan changefeed.Notice, error)
}

// Snapshot is the full content of one collection at a point in time.
type Snapshot struct {
	Collection string      `json:"collection"`
	Version    uint64      `json:"version"`
	At         time.Time   `json:"at"`
	Data       interface{} `json:"data"`
}

// SnapshotService keeps the last-known snapshot of every collection and fans updates out.
// A failed reload keeps the previous snapshot in place.
type SnapshotService struct {
	leads  snapshotLeadSource
	staff  snapshotStaffSource
	logs   snapshotLogSource
	feed   noticeSubscriber
	logger *zap.Logger
	now    func() time.Time

	mu          sync.RWMutex
	current     map[string]Snapshot
	version     uint64
	subscribers map[int]chan Snapshot
	nextID      int
	listeners   []func(ctx context.Context, collection string)
}

// NewSnapshotService constructs the service. feed may be nil, in which case only explicit reloads happen.
func NewSnapshotService(leads snapshotLeadSource, staff snapshotStaffSource, logs snapshotLogSource, feed noticeSubscriber, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		leads:       leads,
		staff:       staff,
		logs:        logs,
		feed:        feed,
		logger:      logger,
		now:         time.Now,
		current:     make(map[string]Snapshot),
		subscribers: make(map[int]chan Snapshot),
	}
}

// Collections lists the collections the service tracks.
func Collections() []string {
	return []string{changefeed.CollectionLeads, changefeed.CollectionStaff, changefeed.CollectionSystemLogs}
}

// OnChange registers fn to run after each notice, before the reload.
func (s *SnapshotService) OnChange(fn func(ctx context.Context, collection string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start loads every collection once and follows the change feed until ctx is done.
func (s *SnapshotService) Start(ctx context.Context) error {
	if err := s.Reload(ctx, Collections()...); err != nil {
		s.logger.Warn("initial snapshot load incomplete", zap.Error(err))
	}
	if s.feed == nil {
		return nil
	}
	notices, err := s.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe change feed: %w", err)
	}
	go s.follow(ctx, notices)
	return nil
}

func (s *SnapshotService) follow(ctx context.Context, notices <-chan changefeed.Notice) {
	for notice := range notices {
		s.mu.RLock()
		listeners := append([]func(context.Context, string){}, s.listeners...)
		s.mu.RUnlock()
		for _, fn := range listeners {
			fn(ctx, notice.Collection)
		}

		loadCtx, cancel := context.WithTimeout(ctx, snapshotLoadTimeout)
		if err := s.Reload(loadCtx, notice.Collection); err != nil {
			s.logger.Warn("snapshot reload failed, keeping last-known", zap.String("collection", notice.Collection), zap.Error(err))
		}
		cancel()
	}
}

// Reload fetches the named collections concurrently and publishes each one that loaded.
func (s *SnapshotService) Reload(ctx context.Context, collections ...string) error {
	loaded := make([]interface{}, len(collections))
	ok := make([]bool, len(collections))
	var g errgroup.Group
	for i, collection := range collections {
		g.Go(func() error {
			data, err := s.load(ctx, collection)
			if err != nil {
				return fmt.Errorf("load %s: %w", collection, err)
			}
			loaded[i], ok[i] = data, true
			return nil
		})
	}
	err := g.Wait()

	for i, collection := range collections {
		if ok[i] {
			s.publish(collection, loaded[i])
		}
	}
	return err
}

// Current returns the last-known snapshot of collection.
func (s *SnapshotService) Current(collection string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.current[collection]
	return snap, ok
}

// All returns the last-known snapshot of every loaded collection.
func (s *SnapshotService) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.current))
	for _, collection := range Collections() {
		if snap, ok := s.current[collection]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// Subscribe registers for future snapshots. Slow subscribers miss updates rather than block.
func (s *SnapshotService) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

func (s *SnapshotService) load(ctx context.Context, collection string) (interface{}, error) {
	switch collection {
	case changefeed.CollectionLeads:
		leads, err := s.leads.ListAll(ctx, models.LeadFilter{})
		if leads == nil {
			leads = []models.Lead{}
		}
		return leads, err
	case changefeed.CollectionStaff:
		staff, err := s.staff.ListAll(ctx)
		if staff == nil {
			staff = []models.Staff{}
		}
		return staff, err
	case changefeed.CollectionSystemLogs:
		logs, err := s.logs.Recent(ctx, snapshotLogLimit)
		if logs == nil {
			logs = []models.SystemLog{}
		}
		return logs, err
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}

func (s *SnapshotService) publish(collection string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	snap := Snapshot{Collection: collection, Version: s.version, At: s.now().UTC(), Data: data}
	s.current[collection] = snap
	for id, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			s.logger.Debug("dropping snapshot for slow subscriber", zap.Int("subscriber", id), zap.String("collection", collection))
		}
	}
}
