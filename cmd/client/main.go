// Command client is a headless driver for the rollback netcode core: a
// stdin menu standing in for game.rs's keyboard-driven ChooseMode/
// WaitingForPlayerList/ChoosePlayer/Playing state machine, since this
// repo's scope stops at the networking and simulation core and never
// pulls in a rendering stack.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duelcore/netcode/internal/config"
	"github.com/duelcore/netcode/internal/gameloop"
	"github.com/duelcore/netcode/internal/logging"
	"github.com/duelcore/netcode/internal/simulation"
	"github.com/duelcore/netcode/internal/transport"
	"github.com/duelcore/netcode/internal/wire"
)

const version = "1.0.0"

// netSender adapts transport+a single server peer to gameloop.Sender; the
// client only ever talks to the relay, never directly to its game peer.
type netSender struct {
	tr   *transport.Transport
	peer *transport.Peer
}

func (s *netSender) SendGetPeerList() error {
	return s.tr.SendUnreliable(s.peer, wire.KindGetPeerList, nil)
}

func (s *netSender) SendConnectToPeer(peerID byte) error {
	payload, err := wire.EncodePayload(wire.Message{Kind: wire.KindConnectToPeer, PeerID: peerID})
	if err != nil {
		return err
	}
	return s.tr.SendReliable(s.peer, wire.KindConnectToPeer, payload)
}

func (s *netSender) SendClientInputs(frame uint32, set wire.InputSet) error {
	return s.tr.SendInputsTick(s.peer, wire.KindClientInputs, frame, set)
}

func (s *netSender) SendClientWorld(data []byte) error {
	compressed, err := wire.CompressWorldState(data)
	if err != nil {
		return err
	}
	payload, err := wire.EncodePayload(wire.Message{Kind: wire.KindClientWorld, WorldState: compressed})
	if err != nil {
		return err
	}
	return s.tr.SendReliable(s.peer, wire.KindClientWorld, payload)
}

// heldInput is the local player's current input set, mutated from the
// stdin command goroutine and read each Tick from the game loop goroutine.
type heldInput struct {
	mu  sync.Mutex
	set wire.InputSet
}

func (h *heldInput) toggle(input wire.PlayerInput, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if on {
		h.set = h.set.With(input)
	} else {
		h.set = h.set.Without(input)
	}
}

func (h *heldInput) snapshot() wire.InputSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.set
}

func main() {
	configPath := flag.String("config", "", "path to client config JSON ("+config.EnvOverride+" env var also accepted)")
	flag.Parse()

	cfg := config.LoadClient(*configPath)
	transport.SetRetryPolicy(cfg.RetryTimeoutMs.Duration(), cfg.MaxRetries)

	log := logging.New(cfg.Log)
	defer log.Sync()
	log.Info("client starting", zap.String("version", version), zap.String("server_addr", cfg.ServerAddr))

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		log.Fatal("local socket bind failed", zap.Error(err))
	}
	defer conn.Close()

	serverAddr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		log.Fatal("resolve server address failed", zap.Error(err))
	}

	tr := transport.New(conn, log)
	peer := transport.NewPeer(serverAddr)
	sender := &netSender{tr: tr, peer: peer}
	engine := gameloop.New(simulation.DefaultBounds)
	input := &heldInput{}

	go readLoop(conn, tr, peer, engine, sender, log)
	go stdinLoop(engine, sender, input, log)
	go func() {
		interval := transport.RetryInterval
		if interval <= 0 {
			interval = 250 * time.Millisecond
		}
		retry := time.NewTicker(interval)
		defer retry.Stop()
		for range retry.C {
			exhausted, err := tr.RetrySweep(peer)
			if err != nil || len(exhausted) > 0 {
				log.Warn("retry sweep", zap.Error(err), zap.Int("lost_messages", len(exhausted)))
			}
		}
	}()

	frameTime := cfg.PhysicsFrameTime
	if frameTime <= 0 {
		frameTime = simulation.PhysicsFrameTime
	}
	ticker := time.NewTicker(time.Duration(frameTime * float64(time.Second)))
	defer ticker.Stop()

	last := time.Now()
	for range ticker.C {
		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now
		if err := engine.Tick(dt, input.snapshot(), sender); err != nil {
			log.Warn("tick failed", zap.Error(err))
		}
	}
}

func readLoop(conn net.PacketConn, tr *transport.Transport, peer *transport.Peer, engine *gameloop.Engine, sender *netSender, log *zap.Logger) {
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			log.Warn("read failed", zap.Error(err))
			return
		}
		inbound, ok, err := tr.HandleDatagram(peer, append([]byte(nil), buf[:n]...))
		if err != nil {
			log.Warn("handle datagram failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		dispatch(engine, sender, inbound, log)
	}
}

func dispatch(engine *gameloop.Engine, sender *netSender, inbound transport.Inbound, log *zap.Logger) {
	switch inbound.Kind {
	case wire.KindPeerList:
		engine.OnPeerList(inbound.Message.PeerIDs)
	case wire.KindServerWorld:
		raw, err := wire.DecompressWorldState(inbound.Message.WorldState)
		if err != nil {
			log.Warn("decompress world state failed", zap.Error(err))
			return
		}
		if err := engine.OnServerWorld(raw); err != nil {
			log.Warn("restore world state failed", zap.Error(err))
		}
	case wire.KindServerInputs:
		engine.OnServerInputs(inbound.Message.Inputs)
	case wire.KindRequestWorld:
		if err := engine.OnRequestWorld(sender); err != nil {
			log.Warn("send world on request failed", zap.Error(err))
		}
	default:
		log.Debug("unhandled client message kind", zap.String("kind", inbound.Kind.String()))
	}
}

func stdinLoop(engine *gameloop.Engine, sender *netSender, input *heldInput, log *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: host | join | choose <n> | left on|off | right on|off | shoot on|off | quit")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "host":
			engine.HostGame()
		case "join":
			if err := engine.JoinGame(sender); err != nil {
				log.Warn("join failed", zap.Error(err))
			}
		case "choose":
			if len(fields) < 2 {
				continue
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			if err := engine.ChoosePeer(idx, sender); err != nil {
				log.Warn("choose peer failed", zap.Error(err))
			}
		case "left":
			input.toggle(wire.InputLeft, wantsOn(fields))
		case "right":
			input.toggle(wire.InputRight, wantsOn(fields))
		case "shoot":
			input.toggle(wire.InputShoot, wantsOn(fields))
		case "quit":
			os.Exit(0)
		}
	}
}

func wantsOn(fields []string) bool {
	return len(fields) > 1 && fields[1] == "on"
}
