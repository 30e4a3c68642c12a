package transport

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/duelcore/netcode/internal/seqnum"
	"github.com/duelcore/netcode/internal/wire"
)

// chunkAssemblyTTL bounds how long a partially-received chunked message
// waits for its remaining chunks before being garbage collected. A peer
// that started a chunked send and vanished (or that had chunks dropped
// past MaxRetries) would otherwise leak memory forever.
const chunkAssemblyTTL = 30 * time.Second

type assembly struct {
	kind   wire.Kind
	total  uint16
	chunks map[seqnum.Num][]byte
}

func (a *assembly) complete() bool {
	return uint16(len(a.chunks)) == a.total
}

func (a *assembly) reassemble(base seqnum.Num) []byte {
	out := make([]byte, 0, int(a.total)*wire.MaxPayload)
	for i := uint16(0); i < a.total; i++ {
		out = append(out, a.chunks[seqnum.Add(base, i)]...)
	}
	return out
}

// Assembler reassembles chunked reliable messages, one assembly per
// (peer, base-seq-num) pair. Both the socket-read goroutine and any
// caller polling for completed messages touch it, so every method locks.
type Assembler struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewAssembler returns an Assembler that drops stale partial assemblies
// after chunkAssemblyTTL.
func NewAssembler() *Assembler {
	return &Assembler{cache: cache.New(chunkAssemblyTTL, chunkAssemblyTTL/2)}
}

func assemblyKey(peerKey string, base seqnum.Num) string {
	return peerKey + "/" + strconv.Itoa(int(base))
}

// AddChunk feeds one received chunk into its assembly. Returns the
// reassembled payload and true once every chunk for that base-seq-num has
// arrived; otherwise returns (nil, false).
func (a *Assembler) AddChunk(peerKey string, h wire.Header, body []byte) ([]byte, bool, error) {
	if h.TotalChunks == 0 {
		return nil, false, fmt.Errorf("transport: AddChunk called on non-chunk header")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := assemblyKey(peerKey, h.BaseSeqNum)
	var asm *assembly
	if v, ok := a.cache.Get(key); ok {
		asm = v.(*assembly)
	} else {
		asm = &assembly{kind: h.Kind, total: h.TotalChunks, chunks: make(map[seqnum.Num][]byte)}
	}

	asm.chunks[h.SeqNum] = body
	if !asm.complete() {
		a.cache.Set(key, asm, cache.DefaultExpiration)
		return nil, false, nil
	}

	a.cache.Delete(key)
	return asm.reassemble(h.BaseSeqNum), true, nil
}

// Pending reports how many in-progress assemblies are tracked, for
// metrics.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.ItemCount()
}
