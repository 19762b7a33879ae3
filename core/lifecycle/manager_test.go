package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"GuildFM/core/session"
	"GuildFM/core/voice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPlayer struct{}

func (nopPlayer) Play(context.Context, io.Reader) error { return nil }

type fakeConn struct {
	channelID    string
	disconnected atomic.Bool

	mu           sync.Mutex
	onDisconnect func()
}

func (c *fakeConn) ChannelID() string    { return c.channelID }
func (c *fakeConn) Player() voice.Player { return nopPlayer{} }
func (c *fakeConn) Disconnect() error {
	c.disconnected.Store(true)
	return nil
}
func (c *fakeConn) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// drop simulates the transport going away.
func (c *fakeConn) drop() {
	c.mu.Lock()
	fn := c.onDisconnect
	c.mu.Unlock()
	fn()
}

type fakeGateway struct {
	joins atomic.Int32
	err   error
	delay time.Duration
}

func (g *fakeGateway) Join(_ context.Context, _, channelID string) (voice.Connection, error) {
	g.joins.Add(1)
	time.Sleep(g.delay)
	if g.err != nil {
		return nil, g.err
	}
	return &fakeConn{channelID: channelID}, nil
}

// storeCleaner mimics the playback controller's cleanup.
type storeCleaner struct {
	store *session.Store

	mu      sync.Mutex
	reasons []string
}

func (c *storeCleaner) Cleanup(guildID, reason string) {
	c.mu.Lock()
	c.reasons = append(c.reasons, reason)
	c.mu.Unlock()

	sess, ok := c.store.Get(guildID)
	if !ok {
		return
	}
	sess.Close()
	if conn := sess.ClearConnection(); conn != nil {
		_ = conn.Disconnect()
	}
	c.store.Delete(sess)
}

func (c *storeCleaner) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.reasons...)
}

// manualTimers captures scheduled checks so tests decide when they fire.
type manualTimers struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	m.delays = append(m.delays, d)
	m.pending = append(m.pending, f)
	m.mu.Unlock()
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type fixture struct {
	mgr     *Manager
	store   *session.Store
	gateway *fakeGateway
	cleaner *storeCleaner
	timers  *manualTimers
}

func newFixture() *fixture {
	store := session.NewStore(50)
	gw := &fakeGateway{}
	cleaner := &storeCleaner{store: store}
	timers := &manualTimers{}
	mgr := NewManager(store, gw, cleaner, 30*time.Second)
	mgr.afterFunc = timers.afterFunc
	return &fixture{mgr: mgr, store: store, gateway: gw, cleaner: cleaner, timers: timers}
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture()
	f.gateway.delay = 20 * time.Millisecond

	conns := make([]voice.Connection, 8)
	var wg sync.WaitGroup
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.mgr.Join(context.Background(), "G", "vc1")
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.gateway.joins.Load())
	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}

	// a different channel still reuses the existing connection
	again, err := f.mgr.Join(context.Background(), "G", "vc2")
	require.NoError(t, err)
	assert.Same(t, conns[0], again)
	assert.True(t, f.mgr.Connected("G"))
}

func TestJoinErrorIsConnectionError(t *testing.T) {
	f := newFixture()
	f.gateway.err = errors.New("voice handshake timed out")

	conn, err := f.mgr.Join(context.Background(), "G", "vc1")
	assert.Nil(t, conn)

	var cerr *voice.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "G", cerr.GuildID)
	assert.Equal(t, "vc1", cerr.ChannelID)
	assert.False(t, f.mgr.Connected("G"))
}

func TestTransportLossTriggersCleanup(t *testing.T) {
	f := newFixture()
	conn, err := f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)

	conn.(*fakeConn).drop()

	assert.Equal(t, []string{"transport disconnected"}, f.cleaner.calls())
	assert.Zero(t, f.store.Len())
}

func TestStaleTransportLossIsIgnored(t *testing.T) {
	f := newFixture()
	old, err := f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)
	f.mgr.Leave("G")

	_, err = f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)
	old.(*fakeConn).drop()

	assert.Equal(t, []string{"leave"}, f.cleaner.calls())
	assert.True(t, f.mgr.Connected("G"))
}

func TestIdleDisconnect(t *testing.T) {
	t.Run("still empty when the timer fires", func(t *testing.T) {
		f := newFixture()
		conn, err := f.mgr.Join(context.Background(), "G", "vc1")
		require.NoError(t, err)

		f.mgr.HandleMembershipChange("G", "vc1", 0)
		require.Equal(t, []time.Duration{30 * time.Second}, f.timers.delays)
		assert.True(t, f.mgr.Connected("G"), "nothing happens before the timeout")

		f.timers.fireAll()
		assert.Equal(t, []string{"idle timeout"}, f.cleaner.calls())
		assert.True(t, conn.(*fakeConn).disconnected.Load())
		assert.False(t, f.mgr.Connected("G"))
	})

	t.Run("member rejoins before the timer fires", func(t *testing.T) {
		f := newFixture()
		_, err := f.mgr.Join(context.Background(), "G", "vc1")
		require.NoError(t, err)

		f.mgr.HandleMembershipChange("G", "vc1", 0) // T
		f.mgr.HandleMembershipChange("G", "vc1", 1) // T+10s
		f.timers.fireAll()                          // T+30s

		assert.Empty(t, f.cleaner.calls())
		assert.True(t, f.mgr.Connected("G"))
	})

	t.Run("other channel empties", func(t *testing.T) {
		f := newFixture()
		_, err := f.mgr.Join(context.Background(), "G", "vc1")
		require.NoError(t, err)

		f.mgr.HandleMembershipChange("G", "vc2", 0)
		assert.Empty(t, f.timers.delays)
	})

	t.Run("guild not connected", func(t *testing.T) {
		f := newFixture()
		f.mgr.HandleMembershipChange("G", "vc1", 0)
		assert.Empty(t, f.timers.delays)
	})

	t.Run("reconnected before the timer fires", func(t *testing.T) {
		f := newFixture()
		_, err := f.mgr.Join(context.Background(), "G", "vc1")
		require.NoError(t, err)
		f.mgr.HandleMembershipChange("G", "vc1", 0)

		f.mgr.Leave("G")
		_, err = f.mgr.Join(context.Background(), "G", "vc1")
		require.NoError(t, err)
		f.timers.fireAll()

		assert.Equal(t, []string{"leave"}, f.cleaner.calls())
		assert.True(t, f.mgr.Connected("G"))
	})
}

type staticCounter int

func (c staticCounter) NonBotMembers(string, string) int { return int(c) }

func TestIdleCheckPrefersLiveCounter(t *testing.T) {
	f := newFixture()
	f.mgr.SetMembershipCounter(staticCounter(2))
	_, err := f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)

	f.mgr.HandleMembershipChange("G", "vc1", 0)
	f.timers.fireAll()

	assert.Empty(t, f.cleaner.calls())
}

func TestIdleTimerWithRealClock(t *testing.T) {
	store := session.NewStore(50)
	cleaner := &storeCleaner{store: store}
	mgr := NewManager(store, &fakeGateway{}, cleaner, 20*time.Millisecond)
	_, err := mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)

	mgr.HandleMembershipChange("G", "vc1", 0)
	require.Eventually(t, func() bool { return !mgr.Connected("G") }, time.Second, 5*time.Millisecond)
}

func TestMembershipCountsStayBounded(t *testing.T) {
	f := newFixture()
	countsLen := func() int {
		f.mgr.mu.Lock()
		defer f.mgr.mu.Unlock()
		return len(f.mgr.counts)
	}

	// 未连接的公会和其他频道不留记录
	for i := 0; i < 100; i++ {
		f.mgr.HandleMembershipChange("other", "vc1", i%3)
	}
	_, err := f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)
	f.mgr.HandleMembershipChange("G", "vc2", 4)
	assert.Zero(t, countsLen())

	f.mgr.HandleMembershipChange("G", "vc1", 0)
	assert.Equal(t, 1, countsLen())

	f.timers.fireAll()
	assert.Equal(t, []string{"idle timeout"}, f.cleaner.calls())
	assert.Zero(t, countsLen())

	_, err = f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)
	f.mgr.HandleMembershipChange("G", "vc1", 2)
	assert.Equal(t, 1, countsLen())
	f.mgr.Leave("G")
	assert.Zero(t, countsLen())

	conn, err := f.mgr.Join(context.Background(), "G", "vc1")
	require.NoError(t, err)
	f.mgr.HandleMembershipChange("G", "vc1", 1)
	conn.(*fakeConn).drop()
	assert.Zero(t, countsLen())
}
