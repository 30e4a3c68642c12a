// Package netsim injects seeded latency, jitter, and packet loss into a
// stream of datagrams so the reliability and rollback layers can be tested
// deterministically against bad network conditions without a real network.
package netsim

import (
	"container/heap"
	"math/rand"
	"net"
	"sync"
	"time"
)

// delayedMessage is one datagram in flight, scheduled for delivery at
// deliveryTime. The heap orders by earliest deliveryTime first.
type delayedMessage struct {
	data         []byte
	addr         net.Addr // either the source (receive queue) or dest (send queue)
	deliveryTime time.Time
}

type delayQueue []*delayedMessage

func (q delayQueue) Len() int            { return len(q) }
func (q delayQueue) Less(i, j int) bool  { return q[i].deliveryTime.Before(q[j].deliveryTime) }
func (q delayQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *delayQueue) Push(x interface{}) { *q = append(*q, x.(*delayedMessage)) }
func (q *delayQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Simulator delays, jitters, and drops datagrams passed through it. It is
// symmetric: a receive queue for inbound datagrams and an independent send
// queue for outbound ones, so a test can model asymmetric conditions by
// running two Simulators back to back.
type Simulator struct {
	mu sync.Mutex

	recvQueue delayQueue
	sendQueue delayQueue

	rng *rand.Rand

	baselineLatency time.Duration
	jitter          time.Duration
	packetLoss      float32
}

// New builds a Simulator with a deterministic RNG seeded from seed, so a
// given seed always produces the same sequence of drops and delays.
func New(seed int64, baselineLatency, jitter time.Duration, packetLoss float32) *Simulator {
	return &Simulator{
		rng:             rand.New(rand.NewSource(seed)),
		baselineLatency: baselineLatency,
		jitter:          jitter,
		packetLoss:      packetLoss,
	}
}

// ModifyLatency adjusts the baseline latency by delta, floored at zero.
func (s *Simulator) ModifyLatency(delta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselineLatency += delta
	if s.baselineLatency < 0 {
		s.baselineLatency = 0
	}
}

// ModifyJitter adjusts jitter by delta, floored at zero.
func (s *Simulator) ModifyJitter(delta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jitter += delta
	if s.jitter < 0 {
		s.jitter = 0
	}
}

// ModifyPacketLoss adjusts packet loss by delta, clamped to [0, 1].
func (s *Simulator) ModifyPacketLoss(delta float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetLoss += delta
	if s.packetLoss < 0 {
		s.packetLoss = 0
	} else if s.packetLoss > 1 {
		s.packetLoss = 1
	}
}

// EnqueueReceive schedules an inbound datagram from addr for delayed
// delivery, subject to the configured packet loss.
func (s *Simulator) EnqueueReceive(data []byte, addr net.Addr) {
	s.enqueue(&s.recvQueue, data, addr)
}

// EnqueueSend schedules an outbound datagram to addr for delayed delivery,
// subject to the configured packet loss.
func (s *Simulator) EnqueueSend(data []byte, addr net.Addr) {
	s.enqueue(&s.sendQueue, data, addr)
}

func (s *Simulator) enqueue(q *delayQueue, data []byte, addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float32() < s.packetLoss {
		return
	}
	jitter := time.Duration(0)
	if s.jitter > 0 {
		jitter = time.Duration(s.rng.Int63n(int64(s.jitter) + 1))
	}
	heap.Push(q, &delayedMessage{
		data:         data,
		addr:         addr,
		deliveryTime: time.Now().Add(s.baselineLatency + jitter),
	})
}

// ReadyToReceive pops every inbound datagram whose delivery time has
// arrived, earliest first.
func (s *Simulator) ReadyToReceive() []DeliveredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return drainReady(&s.recvQueue)
}

// ReadyToSend pops every outbound datagram whose delivery time has
// arrived, earliest first.
func (s *Simulator) ReadyToSend() []DeliveredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return drainReady(&s.sendQueue)
}

// DeliveredMessage is a datagram that has cleared the simulated network and
// is ready for the caller to act on.
type DeliveredMessage struct {
	Data []byte
	Addr net.Addr
}

func drainReady(q *delayQueue) []DeliveredMessage {
	now := time.Now()
	var ready []DeliveredMessage
	for q.Len() > 0 && !(*q)[0].deliveryTime.After(now) {
		msg := heap.Pop(q).(*delayedMessage)
		ready = append(ready, DeliveredMessage{Data: msg.data, Addr: msg.addr})
	}
	return ready
}
