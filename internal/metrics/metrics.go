// Package metrics exposes the relay's Prometheus counters. It is kept
// deliberately thin: one file, package-level collectors, registered
// against the default registry so cmd/relayserver only has to mount
// promhttp.Handler() to serve them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SessionsStarted counts every addr the relay has assigned a player
	// slot to, including ones that never complete a peering.
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netcode",
		Subsystem: "relay",
		Name:      "sessions_started_total",
		Help:      "Number of distinct client addresses the relay has registered.",
	})

	// WorldStatesRelayed counts ClientWorld messages fanned out as
	// ServerWorld to connected peers.
	WorldStatesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netcode",
		Subsystem: "relay",
		Name:      "world_states_relayed_total",
		Help:      "Number of world-state snapshots relayed between peers.",
	})

	// InputsRelayed counts the fresh frame/input entries of each
	// ClientInputs message the relay handles, once per message however
	// many peers it is then fanned out to as ServerInputs.
	InputsRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netcode",
		Subsystem: "relay",
		Name:      "inputs_relayed_total",
		Help:      "Number of per-frame input entries relayed between peers.",
	})

	// PeersLost counts peers dropped after exhausting their reliable
	// retry budget.
	PeersLost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netcode",
		Subsystem: "relay",
		Name:      "peers_lost_total",
		Help:      "Number of peers dropped after exceeding the reliable retry budget.",
	})
)

func init() {
	prometheus.MustRegister(SessionsStarted, WorldStatesRelayed, InputsRelayed, PeersLost)
}
