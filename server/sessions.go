package server

import (
	"context"
	"sync"
	"time"

	"github.com/caffeineduck/rise/editor"
	"go.uber.org/zap"
)

type sessionManager struct {
	sessions map[string]*serverSession
	mu       sync.RWMutex
	ttl      time.Duration
	logger   *zap.Logger
}

type serverSession struct {
	session  *editor.EditorSession
	client   string
	ui       *wsUI
	lastUsed time.Time
}

func (ss *serverSession) close() {
	ss.session.Close()
	if ss.ui != nil {
		ss.ui.Close()
	}
}

func newSessionManager(ttl time.Duration, logger *zap.Logger) *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*serverSession),
		ttl:      ttl,
		logger:   logger,
	}
}

func (sm *sessionManager) add(session *editor.EditorSession, client string, ui *wsUI) {
	sm.mu.Lock()
	sm.sessions[session.ID()] = &serverSession{
		session:  session,
		client:   client,
		ui:       ui,
		lastUsed: time.Now(),
	}
	sm.mu.Unlock()
}

// get returns the session with id if it belongs to client.
func (sm *sessionManager) get(id, client string) (*editor.EditorSession, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ss, ok := sm.sessions[id]
	if !ok || client == "" || ss.client != client {
		return nil, false
	}
	ss.lastUsed = time.Now()
	return ss.session, true
}

func (sm *sessionManager) touch(id string) {
	sm.mu.Lock()
	if ss, ok := sm.sessions[id]; ok {
		ss.lastUsed = time.Now()
	}
	sm.mu.Unlock()
}

func (sm *sessionManager) close(id string) bool {
	sm.mu.Lock()
	ss, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()
	if ok {
		ss.close()
	}
	return ok
}

func (sm *sessionManager) len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// run expires idle sessions until ctx is done.
func (sm *sessionManager) run(ctx context.Context) {
	interval := time.Minute
	if sm.ttl < 2*interval {
		interval = sm.ttl / 2
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sm.expire(now)
		}
	}
}

// expire closes sessions idle since before now minus the TTL.
func (sm *sessionManager) expire(now time.Time) int {
	sm.mu.Lock()
	var stale []*serverSession
	for id, ss := range sm.sessions {
		if now.Sub(ss.lastUsed) > sm.ttl {
			stale = append(stale, ss)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	for _, ss := range stale {
		sm.logger.Info("session expired", zap.String("session", ss.session.ID()))
		ss.close()
	}
	return len(stale)
}

func (sm *sessionManager) closeAll() {
	sm.mu.Lock()
	all := sm.sessions
	sm.sessions = make(map[string]*serverSession)
	sm.mu.Unlock()

	for _, ss := range all {
		ss.close()
	}
}
