// Package session owns the browser sessions driving the portal and runs the
// per-case query flow on them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/metrics"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// DefaultKey is used when a caller does not name its session.
const DefaultKey = "default"

var (
	// ErrNoSession means no session is registered under the key.
	ErrNoSession = errors.New("session not found")
	// ErrSessionDead means the session's browser is gone; it has been removed.
	ErrSessionDead = errors.New("session is no longer alive")
	// ErrSessionBusy means another request is driving the session.
	ErrSessionBusy = errors.New("session is busy")
)

// UserMessage returns the message shown to portal users for session errors.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrSessionDead):
		return "UYAP oturumu sonlanmış. Lütfen tekrar giriş yapın."
	case errors.Is(err, ErrNoSession):
		return "Aktif UYAP oturumu bulunamadı. Lütfen önce giriş yapın."
	case errors.Is(err, ErrSessionBusy):
		return "UYAP oturumu başka bir işlem tarafından kullanılıyor. Lütfen bekleyin."
	default:
		return err.Error()
	}
}

// Browser is a running browser that can open pages.
type Browser interface {
	NewPage(ctx context.Context) (browser.Page, error)
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// RodLauncher starts Chrome through rod.
type RodLauncher struct {
	Config browser.LaunchConfig
}

func (l RodLauncher) Launch(ctx context.Context) (Browser, error) {
	b, err := browser.Launch(l.Config)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Handle is one live session. Only one goroutine may drive it at a time;
// see TryUse.
type Handle struct {
	Key       string
	CreatedAt time.Time

	page    browser.Page
	ctl     *interaction.Controller
	browser Browser

	use      sync.Mutex
	mu       sync.Mutex
	lastUsed time.Time
	loggedIn bool
}

func (h *Handle) Page() browser.Page {
	return h.page
}

func (h *Handle) Controller() *interaction.Controller {
	return h.ctl
}

// TryUse claims the session for the caller. release must be called when
// done.
func (h *Handle) TryUse() (release func(), ok bool) {
	if !h.use.TryLock() {
		return nil, false
	}
	h.touch()
	return h.use.Unlock, true
}

func (h *Handle) touch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastUsed = time.Now()
}

func (h *Handle) setLoggedIn(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loggedIn = v
}

// LoggedIn reports whether Login completed on this session.
func (h *Handle) LoggedIn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loggedIn
}

func (h *Handle) close() error {
	var errs []error
	if err := h.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if h.browser != nil {
		if err := h.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionStatus describes a live session.
type SessionStatus struct {
	Key       string    `json:"session_id"`
	LoggedIn  bool      `json:"logged_in"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Manager keeps at most one live session per key. Every access to the map
// happens under one lock.
type Manager struct {
	launcher Launcher
	opts     interaction.Options
	log      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Handle
}

func NewManager(launcher Launcher, opts interaction.Options, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		launcher: launcher,
		opts:     opts,
		log:      log,
		sessions: make(map[string]*Handle),
	}
}

// Acquire returns the live session for key, starting one when there is
// none or the previous one died.
func (m *Manager) Acquire(ctx context.Context, key string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.sessions[key]; ok {
		if err := h.page.Alive(); err == nil {
			h.touch()
			return h, nil
		}
		m.log.Warn("Replacing dead session", "session", key)
		m.removeLocked(key)
	}

	b, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	now := time.Now()
	h := &Handle{
		Key:       key,
		CreatedAt: now,
		page:      page,
		ctl:       interaction.New(page, m.opts, m.log.With("session", key)),
		browser:   b,
		lastUsed:  now,
	}
	m.sessions[key] = h
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.log.Info("Session started", "session", key)
	return h, nil
}

// Get returns the live session for key without starting one. A dead
// session is removed and reported as ErrSessionDead.
func (m *Manager) Get(key string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, key)
	}
	if err := h.page.Alive(); err != nil {
		m.log.Warn("Session died", "session", key, "error", err)
		m.removeLocked(key)
		return nil, fmt.Errorf("%w: %s", ErrSessionDead, key)
	}
	return h, nil
}

// IsAlive reports whether key has a live session, removing it if it died.
func (m *Manager) IsAlive(key string) bool {
	_, err := m.Get(key)
	return err == nil
}

// Release closes and removes the session for key.
func (m *Manager) Release(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, key)
	}
	m.removeLocked(key)
	return nil
}

// Status prunes dead sessions and describes the live ones, ordered by key.
// Keys are snapshotted first so the map is never mutated while ranged over.
func (m *Manager) Status() []SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SessionStatus, 0, len(keys))
	for _, k := range keys {
		h := m.sessions[k]
		if err := h.page.Alive(); err != nil {
			m.log.Info("Pruning dead session", "session", k, "error", err)
			m.removeLocked(k)
			continue
		}
		h.mu.Lock()
		out = append(out, SessionStatus{
			Key:       k,
			LoggedIn:  h.loggedIn,
			CreatedAt: h.CreatedAt,
			LastUsed:  h.lastUsed,
		})
		h.mu.Unlock()
	}
	return out
}

// Close releases every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	for _, k := range keys {
		m.removeLocked(k)
	}
}

// removeLocked drops key and closes its browser. A dead browser often
// fails to close; that is logged only.
func (m *Manager) removeLocked(key string) {
	h := m.sessions[key]
	delete(m.sessions, key)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))

	if err := h.close(); err != nil {
		m.log.Debug("Error closing session", "session", key, "error", err)
	}
	m.log.Info("Session closed", "session", key)
}
