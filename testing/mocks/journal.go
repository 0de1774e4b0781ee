package mocks

import (
	"slices"
	"sync"
)

// Op names a connection operation recorded in a Journal.
type Op string

const (
	OpOpen         Op = "Open"
	OpSetMethod    Op = "SetMethod"
	OpSetHeader    Op = "SetHeader"
	OpWriteBody    Op = "WriteBody"
	OpInputStream  Op = "InputStream"
	OpErrorStream  Op = "ErrorStream"
	OpStatusCode   Op = "StatusCode"
	OpDate         Op = "Date"
	OpHeaderFields Op = "HeaderFields"
	OpClose        Op = "Close"
)

// readOps are the response-side accessors whose call sequence the client keeps minimal.
var readOps = []Op{OpInputStream, OpErrorStream, OpStatusCode, OpDate, OpHeaderFields}

// Call is one recorded operation.
type Call struct {
	Conn string
	Op   Op
}

// Journal records connection operations in global order across connections.
type Journal struct {
	mu    sync.Mutex
	calls []Call
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) record(conn string, op Op) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, Call{Conn: conn, Op: op})
}

// Calls returns a copy of every recorded call.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.calls)
}

// Ops returns the operations recorded for one connection, in order.
func (j *Journal) Ops(conn string) []Op {
	j.mu.Lock()
	defer j.mu.Unlock()
	var ops []Op
	for _, c := range j.calls {
		if c.Conn == conn {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// ReadOps returns only the response accessors called on conn, in order.
func (j *Journal) ReadOps(conn string) []Op {
	var ops []Op
	for _, op := range j.Ops(conn) {
		if slices.Contains(readOps, op) {
			ops = append(ops, op)
		}
	}
	return ops
}

// Count returns how many times op was recorded for conn.
func (j *Journal) Count(conn string, op Op) int {
	n := 0
	for _, o := range j.Ops(conn) {
		if o == op {
			n++
		}
	}
	return n
}

// Index returns the global position of the first op on conn, or -1.
func (j *Journal) Index(conn string, op Op) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, c := range j.calls {
		if c.Conn == conn && c.Op == op {
			return i
		}
	}
	return -1
}

// Reset drops every recorded call.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = nil
}
