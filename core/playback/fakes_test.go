package playback

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"GuildFM/core/audio"
	"GuildFM/core/session"
	"GuildFM/core/source"
	"GuildFM/core/voice"
	"GuildFM/model"

	"github.com/stretchr/testify/require"
)

// fakeStream blocks readers until End or Close is called.
type fakeStream struct {
	url     string
	endCh   chan struct{}
	endOnce sync.Once
	errCh   chan error
	closed  atomic.Bool
}

func newFakeStream(url string) *fakeStream {
	return &fakeStream{url: url, endCh: make(chan struct{}), errCh: make(chan error, 1)}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	<-s.endCh
	return 0, io.EOF
}

func (s *fakeStream) Err() <-chan error { return s.errCh }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.End()
	return nil
}

// End simulates the transcoder reaching end of stream.
func (s *fakeStream) End() {
	s.endOnce.Do(func() { close(s.endCh) })
}

func (s *fakeStream) Fail(err error) {
	s.errCh <- err
}

type fakeOpener struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (o *fakeOpener) Open(_ context.Context, loc source.Locator) (audio.ByteStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	s := newFakeStream(loc.URL)
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streams)
}

func (o *fakeOpener) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	require.Eventually(t, func() bool { return o.count() > i }, 2*time.Second, 5*time.Millisecond)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams[i]
}

type resolveFunc func(ctx context.Context, track model.Track) (source.Locator, error)

func (f resolveFunc) Resolve(ctx context.Context, track model.Track) (source.Locator, error) {
	return f(ctx, track)
}

func echoResolver() resolveFunc {
	return func(_ context.Context, track model.Track) (source.Locator, error) {
		return source.Locator{URL: track.Title, Kind: source.KindRemote}, nil
	}
}

type fakePlayer struct {
	plays atomic.Int32
}

func (p *fakePlayer) Play(ctx context.Context, r io.Reader) error {
	p.plays.Add(1)
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, r)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

type fakeConn struct {
	channelID   string
	player      *fakePlayer
	disconnects atomic.Int32

	mu           sync.Mutex
	onDisconnect func()
}

func newFakeConn(channelID string) *fakeConn {
	return &fakeConn{channelID: channelID, player: &fakePlayer{}}
}

func (c *fakeConn) ChannelID() string    { return c.channelID }
func (c *fakeConn) Player() voice.Player { return c.player }
func (c *fakeConn) Disconnect() error {
	c.disconnects.Add(1)
	return nil
}
func (c *fakeConn) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

type harness struct {
	ctrl   *Controller
	store  *session.Store
	opener *fakeOpener
	events <-chan Event
}

func newHarness(t *testing.T, resolver Resolver) *harness {
	t.Helper()
	store := session.NewStore(50)
	opener := &fakeOpener{}
	bus := NewBus(64)
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	ctrl := NewController(store, resolver, opener, bus, time.Millisecond)
	return &harness{ctrl: ctrl, store: store, opener: opener, events: events}
}

func (h *harness) connect(guildID string) *fakeConn {
	conn := newFakeConn("voice-" + guildID)
	h.store.GetOrCreate(guildID).SetConnection(conn)
	return conn
}

func (h *harness) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (h *harness) noEvent(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.events:
		t.Fatalf("unexpected event %s for %q", e.Type, e.Track.Title)
	case <-time.After(30 * time.Millisecond):
	}
}

func track(title string) model.Track {
	return model.Track{Title: title, Artist: "artist", RequestedBy: "tester"}
}
