package mocks

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
)

// ErrQueueEmpty is returned when the client opens more connections than were queued.
var ErrQueueEmpty = errors.New("mock connection queue is empty")

// ConnectionQueue is an http.ConnectionFactory handing out queued connections in FIFO order.
// The queue is owned by the test; nothing about it is global.
type ConnectionQueue struct {
	mu      sync.Mutex
	pending []*MockConnection
	opened  []*MockConnection
	urls    []*url.URL
	journal *Journal
}

var _ http.ConnectionFactory = (*ConnectionQueue)(nil)

// NewConnectionQueue creates a queue preloaded with conns.
func NewConnectionQueue(conns ...*MockConnection) *ConnectionQueue {
	q := &ConnectionQueue{journal: NewJournal()}
	q.Add(conns...)
	return q
}

// Add appends connections to the queue.
func (q *ConnectionQueue) Add(conns ...*MockConnection) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range conns {
		c.attach(q.journal)
		q.pending = append(q.pending, c)
	}
}

// Open implements http.ConnectionFactory
func (q *ConnectionQueue) Open(_ context.Context, u *url.URL) (http.Connection, error) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil, ErrQueueEmpty
	}
	c := q.pending[0]
	q.pending = q.pending[1:]
	q.opened = append(q.opened, c)
	q.urls = append(q.urls, u)
	q.mu.Unlock()

	c.record(OpOpen)
	return c, nil
}

// Remaining returns how many queued connections were never opened.
func (q *ConnectionQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Opened returns the connections handed out so far, in order.
func (q *ConnectionQueue) Opened() []*MockConnection {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.opened)
}

// URLs returns the URLs passed to Open, in order.
func (q *ConnectionQueue) URLs() []*url.URL {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.urls)
}

// Journal returns the shared call journal.
func (q *ConnectionQueue) Journal() *Journal {
	return q.journal
}

// Clear drops pending connections and resets the journal.
func (q *ConnectionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.opened = nil
	q.urls = nil
	q.journal.Reset()
}

// MockConnectionFactory provides a testify-based mock of http.ConnectionFactory
// for tests that need to fail Open itself.
//
// Example usage:
//
//	f := &mocks.MockConnectionFactory{}
//	f.On("Open", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: refused"))
type MockConnectionFactory struct {
	mock.Mock
}

var _ http.ConnectionFactory = (*MockConnectionFactory)(nil)

// Open implements http.ConnectionFactory
func (m *MockConnectionFactory) Open(ctx context.Context, u *url.URL) (http.Connection, error) {
	args := m.Called(ctx, u)
	var conn http.Connection
	if c := args.Get(0); c != nil {
		conn = c.(http.Connection)
	}
	return conn, args.Error(1)
}

// ExpectOpen sets up one Open call returning conn.
func (m *MockConnectionFactory) ExpectOpen(conn http.Connection) *mock.Call {
	return m.On("Open", mock.Anything, mock.Anything).Return(conn, nil).Once()
}

// ExpectOpenError sets up one Open call failing with err.
func (m *MockConnectionFactory) ExpectOpenError(err error) *mock.Call {
	return m.On("Open", mock.Anything, mock.Anything).Return(nil, err).Once()
}
