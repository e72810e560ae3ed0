package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/browser/browsertest"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

type fakeBrowser struct {
	page   *browsertest.Page
	mu     sync.Mutex
	closed bool
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeLauncher hands out browsers whose page comes from newPage, or a
// fresh blank page.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	newPage  func() *browsertest.Page
	err      error
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	page := browsertest.NewPage()
	if l.newPage != nil {
		page = l.newPage()
	}
	b := &fakeBrowser{page: page}
	l.launched = append(l.launched, b)
	return b, nil
}

func testOptions() interaction.Options {
	opts := interaction.DefaultOptions()
	opts.ElementTimeout = 100 * time.Millisecond
	opts.ShortTimeout = 50 * time.Millisecond
	opts.PollInterval = 5 * time.Millisecond
	opts.ClickBackoff = time.Millisecond
	return opts
}

func newTestManager() (*Manager, *fakeLauncher) {
	l := &fakeLauncher{}
	return NewManager(l, testOptions(), logger.NewNop()), l
}

func TestAcquireReusesLiveSession(t *testing.T) {
	m, l := newTestManager()
	ctx := context.Background()

	a, err := m.Acquire(ctx, "ofis-1")
	require.NoError(t, err)
	b, err := m.Acquire(ctx, "ofis-1")
	require.NoError(t, err)
	c, err := m.Acquire(ctx, "ofis-2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, l.launched, 2)
	assert.NotNil(t, a.Controller())
}

func TestAcquireReplacesDeadSession(t *testing.T) {
	m, l := newTestManager()
	ctx := context.Background()

	first, err := m.Acquire(ctx, DefaultKey)
	require.NoError(t, err)
	first.Page().(*browsertest.Page).Kill()

	second, err := m.Acquire(ctx, DefaultKey)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.Len(t, l.launched, 2)
	assert.True(t, l.launched[0].Closed())
}

func TestAcquireLaunchFailure(t *testing.T) {
	m, l := newTestManager()
	l.err = errors.New("chrome bulunamadı")

	_, err := m.Acquire(context.Background(), DefaultKey)
	assert.Error(t, err)
	assert.Empty(t, m.Status())
}

func TestGetReportsDeadSession(t *testing.T) {
	m, _ := newTestManager()
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)

	h.Page().(*browsertest.Page).Kill()

	_, err = m.Get(DefaultKey)
	assert.ErrorIs(t, err, ErrSessionDead)
	_, err = m.Get(DefaultKey)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, m.IsAlive(DefaultKey))
}

func TestStatusPrunesDeadSessions(t *testing.T) {
	m, l := newTestManager()
	ctx := context.Background()
	for _, key := range []string{"c", "a", "b"} {
		_, err := m.Acquire(ctx, key)
		require.NoError(t, err)
	}
	dead, err := m.Get("b")
	require.NoError(t, err)
	dead.Page().(*browsertest.Page).Kill()

	status := m.Status()

	require.Len(t, status, 2)
	assert.Equal(t, "a", status[0].Key)
	assert.Equal(t, "c", status[1].Key)
	assert.True(t, l.launched[2].Closed())
	assert.False(t, m.IsAlive("b"))
}

func TestReleaseClosesSession(t *testing.T) {
	m, l := newTestManager()
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)

	require.NoError(t, m.Release(DefaultKey))

	assert.True(t, h.Page().(*browsertest.Page).Closed())
	assert.True(t, l.launched[0].Closed())
	assert.ErrorIs(t, m.Release(DefaultKey), ErrNoSession)
}

func TestTryUseIsExclusive(t *testing.T) {
	m, _ := newTestManager()
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)

	release, ok := h.TryUse()
	require.True(t, ok)
	_, ok = h.TryUse()
	assert.False(t, ok)

	release()
	release, ok = h.TryUse()
	assert.True(t, ok)
	release()
}

func TestLoginWaitsForPortal(t *testing.T) {
	m, _ := newTestManager()
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)

	page := h.Page().(*browsertest.Page)
	menu := DefaultLocators().Menu
	page.OnNavigate = func(string) { page.Set(menu, browsertest.NewElement("menu", "Dosya İşlemleri")) }

	require.NoError(t, Login(context.Background(), h, "https://portal.test/giris", menu, time.Second))
	assert.True(t, h.LoggedIn())
	assert.Equal(t, []string{"https://portal.test/giris"}, page.Navigated())
	assert.True(t, m.Status()[0].LoggedIn)
}

func TestLoginTimesOut(t *testing.T) {
	m, _ := newTestManager()
	h, err := m.Acquire(context.Background(), DefaultKey)
	require.NoError(t, err)

	err = Login(context.Background(), h, "https://portal.test/giris", DefaultLocators().Menu, 20*time.Millisecond)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.False(t, h.LoggedIn())
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(ErrSessionDead), "tekrar giriş")
	assert.Contains(t, UserMessage(ErrNoSession), "giriş yapın")
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
