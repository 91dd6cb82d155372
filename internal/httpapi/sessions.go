package httpapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/app"
	"github.com/stuartshay/gobebop/internal/location"
	"github.com/stuartshay/gobebop/internal/queue"
)

// CookieName is the session cookie carrying the UI session id.
const CookieName = "gobebop-session"

const sessionIDKey = "id"

// Session is one browser's application state and the loop that owns it.
type Session struct {
	ID   string
	App  *app.App
	Loop *queue.Loop

	lastSeen time.Time
}

// Do runs fn against the session's App on its event loop and waits.
func (s *Session) Do(ctx context.Context, name string, fn func(*app.App)) error {
	return s.Loop.Call(ctx, name, func() { fn(s.App) })
}

// DoAndDrain runs fn like Do and then hands over the pending commands. When
// the caller stops waiting, the commands stay in the log for the next poll.
func (s *Session) DoAndDrain(ctx context.Context, name string, fn func(*app.App)) ([]app.Command, error) {
	var (
		cmds    []app.Command
		drained bool
	)
	err := s.Loop.Call(ctx, name, func() {
		fn(s.App)
		if ctx.Err() != nil {
			return
		}
		cmds = s.App.Drain()
		drained = true
	})
	if err == nil {
		return cmds, nil
	}

	// Events run in order, so this sees whatever the abandoned call drained.
	if _, postErr := s.Loop.Post(name+".requeue", func() {
		if drained {
			s.App.Requeue(cmds)
		}
	}); postErr != nil && !errors.Is(postErr, queue.ErrStopped) {
		log.Warn().Err(postErr).Str("session_id", s.ID).Msg("Failed to requeue undelivered commands")
	}
	return nil, err
}

// SessionOptions configures a Manager.
type SessionOptions struct {
	Key           []byte
	MaxAge        int
	Secure        bool
	LoopCapacity  int
	ShutdownGrace time.Duration
}

// Manager maps session cookies to live sessions.
type Manager struct {
	cookies *sessions.CookieStore
	store   *location.Store
	appOpts app.Options
	opts    SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A random signing key is generated
// when none is configured, so sessions do not survive a restart.
func NewManager(store *location.Store, appOpts app.Options, opts SessionOptions) *Manager {
	key := opts.Key
	if len(key) == 0 {
		key = generateSessionKey()
		log.Warn().Msg("SESSION_KEY not set, using a random session key")
	}
	if opts.LoopCapacity <= 0 {
		opts.LoopCapacity = queue.DefaultCapacity
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}

	cookies := sessions.NewCookieStore(key)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		cookies:  cookies,
		store:    store,
		appOpts:  appOpts,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func generateSessionKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("failed to generate session key: %v", err))
	}
	return key
}

// Session returns the caller's session, creating it and setting the cookie
// when the request carries none. A signed id whose session is gone (after a
// restart or reap) is reused for the new session.
func (m *Manager) Session(w http.ResponseWriter, r *http.Request) (*Session, error) {
	cookie, err := m.cookies.Get(r, CookieName)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding invalid session cookie")
	}

	id, _ := cookie.Values[sessionIDKey].(string)
	if id != "" {
		if s, ok := m.touch(id); ok {
			return s, nil
		}
	} else {
		id = uuid.New().String()
		cookie.Values[sessionIDKey] = id
		if err := cookie.Save(r, w); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}

	return m.create(id), nil
}

// Lookup returns a live session by id.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) touch(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.lastSeen = time.Now()
	}
	return s, ok
}

func (m *Manager) create(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Lost a race with a concurrent request from the same browser
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = time.Now()
		return s
	}

	loop := queue.NewLoop("session-"+id, m.opts.LoopCapacity)
	s := &Session{
		ID:       id,
		App:      app.New(id, m.store, loop, m.appOpts),
		Loop:     loop,
		lastSeen: time.Now(),
	}
	m.sessions[id] = s

	log.Info().Str("session_id", id).Int("sessions", len(m.sessions)).Msg("UI session created")
	return s
}

// Reap stops sessions idle for longer than idle and returns how many went.
func (m *Manager) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		if err := s.Loop.Shutdown(m.opts.ShutdownGrace); err != nil {
			log.Warn().Err(err).Str("session_id", s.ID).Msg("Session loop did not stop cleanly")
		}
	}
	if len(stale) > 0 {
		log.Info().Int("reaped", len(stale)).Msg("Idle UI sessions removed")
	}
	return len(stale)
}

// Shutdown stops every session loop.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Loop.Shutdown(timeout); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
