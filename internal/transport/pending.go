// Package transport implements the reliable-datagram send/receive path:
// chunking and reassembly of oversized messages, retransmission of
// unacked reliable sends, and the dedicated cumulative-ack scheme used for
// the high-rate input stream. It sits directly on a net.PacketConn and
// knows nothing about game semantics.
package transport

import (
	"sync"
	"time"

	"github.com/duelcore/netcode/internal/seqnum"
)

// RetryInterval is how long a reliable send waits for an ack before being
// resent. The server and client run with different defaults (120x16ms vs
// 8x250ms); SetRetryPolicy lets cmd/relayserver and cmd/client apply their
// own at startup, before any Transport is constructed.
var RetryInterval = 150 * time.Millisecond

// MaxRetries bounds how many times a single reliable datagram is resent
// before the transport gives up and reports the peer unreachable.
var MaxRetries = 20

// SetRetryPolicy overrides RetryInterval/MaxRetries. Not safe to call once
// a Transport is already sending traffic.
func SetRetryPolicy(interval time.Duration, maxRetries int) {
	RetryInterval = interval
	MaxRetries = maxRetries
}

// pendingMessage is one reliable datagram (or chunk of one) awaiting ack.
type pendingMessage struct {
	data     []byte
	lastSent time.Time
	attempts int
}

// PendingTable tracks reliable sends keyed by their sequence number until
// acked, and what to resend when RetryInterval has elapsed without one —
// the same shape as the teacher's PendingACK map, split into its own type
// since both the read and send paths touch it concurrently.
type PendingTable struct {
	mu      sync.Mutex
	pending map[seqnum.Num]*pendingMessage
}

// NewPendingTable returns an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{pending: make(map[seqnum.Num]*pendingMessage)}
}

// Store registers data as sent under seq, awaiting ack.
func (t *PendingTable) Store(seq seqnum.Num, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[seq] = &pendingMessage{data: data, lastSent: time.Now()}
}

// Ack removes seq from the table, reporting whether it was still pending
// (a duplicate or late ack for an already-acked seq returns false).
func (t *PendingTable) Ack(seq seqnum.Num) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[seq]; !ok {
		return false
	}
	delete(t.pending, seq)
	return true
}

// Retry is one pending message due for resend.
type Retry struct {
	SeqNum seqnum.Num
	Data   []byte
}

// DueForRetry returns every pending message whose RetryInterval has
// elapsed, marking them resent. Entries that have hit MaxRetries are
// dropped from the table and returned via the second slice instead, so
// the caller can treat the peer as unreachable.
func (t *PendingTable) DueForRetry() (retries []Retry, exhausted []seqnum.Num) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for seq, msg := range t.pending {
		if now.Sub(msg.lastSent) < RetryInterval {
			continue
		}
		if msg.attempts >= MaxRetries {
			exhausted = append(exhausted, seq)
			delete(t.pending, seq)
			continue
		}
		msg.attempts++
		msg.lastSent = now
		retries = append(retries, Retry{SeqNum: seq, Data: msg.data})
	}
	return retries, exhausted
}

// Len reports how many sends are currently awaiting ack.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
