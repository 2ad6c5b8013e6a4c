package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/npezzotti/go-chatrooms/internal/testutil"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/stretchr/testify/mock"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport stands in for a *websocket.Conn. Frames written by the
// server are readable from outbound; frames sent by the "browser" go to
// inbound.
type fakeTransport struct {
	inbound   chan []byte
	outbound  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	readLimit int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 512),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.inbound:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, errTransportClosed
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}

	if messageType == websocket.TextMessage {
		f.outbound <- data
	}
	return nil
}

func (f *fakeTransport) SetReadLimit(limit int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readLimit = limit
}

func (f *fakeTransport) getReadLimit() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLimit
}

func (f *fakeTransport) SetReadDeadline(time.Time) error    { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error   { return nil }
func (f *fakeTransport) SetPongHandler(func(string) error) {}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) send(t *testing.T, v any) {
	t.Helper()
	b, ok := v.([]byte)
	if !ok {
		var err error
		if b, err = json.Marshal(v); err != nil {
			t.Fatalf("marshal inbound frame: %v", err)
		}
	}
	f.inbound <- b
}

// next returns the next event written to the transport.
func (f *fakeTransport) next(t *testing.T) types.Event {
	t.Helper()
	select {
	case b := <-f.outbound:
		var evt types.Event
		if err := json.Unmarshal(b, &evt); err != nil {
			t.Fatalf("unmarshal outbound frame %q: %v", b, err)
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outbound event")
	}
	return types.Event{}
}

func (f *fakeTransport) expectNoEvent(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case b := <-f.outbound:
		t.Fatalf("unexpected outbound event %s", b)
	case <-time.After(wait):
	}
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) Principal(ctx context.Context, userId int) (types.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(types.User), args.Error(1)
}
func (m *mockChatService) Authorize(ctx context.Context, principal *types.User, roomId int) error {
	args := m.Called(ctx, principal, roomId)
	return args.Error(0)
}
func (m *mockChatService) SendMessage(ctx context.Context, principal types.User, roomId int, params chat.SendParams) (types.Message, error) {
	args := m.Called(ctx, principal, roomId, params)
	return args.Get(0).(types.Message), args.Error(1)
}

func newTestRouter(t *testing.T) *Router {
	rt := NewRouter(testutil.TestLogger(t), stats.NopStats{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		rt.Shutdown(ctx)
	})
	return rt
}

// newTestClient returns a client without pumps; events queued for it stay
// in its send channel.
func newTestClient(t *testing.T, id string, userId, roomId, queueSize int) *Client {
	c := &Client{
		id:     id,
		log:    testutil.TestLogger(t),
		user:   types.User{Id: userId, Username: id},
		roomId: roomId,
		send:   make(chan *types.Event, queueSize),
		stop:   make(chan struct{}),
	}
	c.state.Store(int32(StateSubscribed))
	return c
}

func recvEvent(t *testing.T, c *Client) *types.Event {
	t.Helper()
	select {
	case evt := <-c.send:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for event on client %s", c.id)
	}
	return nil
}

func isStopped(c *Client) bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

type testHub struct {
	*Hub
	router   *Router
	verifier *mockVerifier
	svc      *mockChatService
}

func newTestHub(t *testing.T) *testHub {
	logger := testutil.TestLogger(t)
	rt := NewRouter(logger, stats.NopStats{})
	v := &mockVerifier{}
	svc := &mockChatService{}
	h := NewHub(logger, v, svc, rt, stats.NopStats{})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Shutdown(ctx)
		rt.Shutdown(ctx)
	})

	return &testHub{Hub: h, router: rt, verifier: v, svc: svc}
}

// open connects user to roomId with a token that verifies and a membership
// that authorizes.
func (th *testHub) open(t *testing.T, user types.User, roomId int) (*Client, *fakeTransport) {
	t.Helper()
	token := "token-" + user.Username
	th.verifier.On("Verify", mock.Anything, token).Return(user.Id, nil)
	th.svc.On("Principal", mock.Anything, user.Id).Return(user, nil)
	th.svc.On("Authorize", mock.Anything, mock.Anything, roomId).Return(nil)

	ft := newFakeTransport()
	c, err := th.Open(context.Background(), token, roomId, func() (Transport, error) {
		return ft, nil
	})
	if err != nil {
		t.Fatalf("open connection for %s: %v", user.Username, err)
	}
	return c, ft
}
