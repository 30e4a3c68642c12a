// Package simulation implements the deterministic, pure per-frame update
// rule shared by both the verified and predicted simulations: given a
// state, a fixed timestep, and both players' inputs for that frame, it
// always produces the same next state. Determinism is what makes rollback
// possible — replaying the same frames from the same starting snapshot
// must reproduce bit-identical results on both ends of the connection.
package simulation

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/duelcore/netcode/internal/inputbuffer"
	"github.com/duelcore/netcode/internal/wire"
)

const (
	MaxBullets = 5
	MaxEnemies = 20

	ReloadTime = 0.5
	BulletSize = 5.0
	EnemySize  = 40.0

	PlayerSpeed      = 150.0
	BulletSpeed      = 500.0
	EnemyFallSpeed   = 100.0
	EnemySpawnPeriod = 120 // frames between spawn attempts

	PhysicsFrameTime = 1.0 / 60.0
)

// Bounds is the playfield size the simulation clamps movement and spawns
// against. Passed explicitly rather than hardcoded so headless servers and
// clients with different window sizes still agree bit-for-bit, as long as
// they're both given the same Bounds.
type Bounds struct {
	Width, Height float64
}

// DefaultBounds matches the window size the reference client renders at.
var DefaultBounds = Bounds{Width: 800, Height: 600}

// Vec2 is a 2D position or velocity.
type Vec2 struct {
	X, Y float64
}

// Bullet is a single in-flight shot. A bullet whose Y is not strictly
// between 0 and Height is considered inactive and parked off-screen.
type Bullet struct {
	Position Vec2
	Velocity Vec2
}

func (b Bullet) active(bounds Bounds) bool {
	return b.Position.Y > 0 && b.Position.Y < bounds.Height
}

// Player is one side's simulated ship: position, queued bullets, and the
// inputs last applied to it.
type Player struct {
	Position      Vec2
	Speed         float64
	Bullets       [MaxBullets]Bullet
	MovementInput float64
	ShootInput    bool
	ReloadTimer   float64
}

func newPlayer(x, y float64) Player {
	p := Player{Position: Vec2{X: x, Y: y}, Speed: PlayerSpeed}
	for i := range p.Bullets {
		p.Bullets[i] = Bullet{Position: Vec2{X: -5, Y: -5}}
	}
	return p
}

func (p *Player) applyInput(set wire.InputSet) {
	p.MovementInput = 0
	p.ShootInput = false
	if set.Has(wire.InputLeft) {
		p.MovementInput = -1
	}
	if set.Has(wire.InputRight) {
		p.MovementInput = 1
	}
	if set.Has(wire.InputShoot) {
		p.ShootInput = true
	}
}

func (p *Player) update(dt float64, bounds Bounds) {
	p.Position.X += p.MovementInput * p.Speed * dt
	p.Position.X = clamp(p.Position.X, 20, bounds.Width-20)

	p.ReloadTimer += dt
	if p.ShootInput && p.ReloadTimer > ReloadTime {
		p.ReloadTimer = 0
		for i := range p.Bullets {
			if !p.Bullets[i].active(bounds) {
				p.Bullets[i].Position = p.Position
				p.Bullets[i].Velocity = Vec2{X: 0, Y: -BulletSpeed}
				break
			}
		}
	}

	for i := range p.Bullets {
		if p.Bullets[i].active(bounds) {
			p.Bullets[i].Position.X += p.Bullets[i].Velocity.X * dt
			p.Bullets[i].Position.Y += p.Bullets[i].Velocity.Y * dt
		} else {
			p.Bullets[i].Position = Vec2{X: -5, Y: -5}
		}
	}
}

// Enemy is a falling target. Inactive enemies sit parked off-screen.
type Enemy struct {
	Position Vec2
}

func (e Enemy) active() bool {
	return e.Position.Y >= 0
}

func (e *Enemy) deactivate() {
	e.Position = Vec2{X: -5, Y: -5}
}

// simpleHash is the frame-derived seed for enemy spawn positions. Must
// match bit-for-bit between verified and predicted simulations, and
// between the two ends of the connection — an ordinary time-based RNG
// would desync the moment the two sides diverge on when "now" is.
func simpleHash(frame uint32) uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], frame)
	var hash uint32
	for _, by := range b {
		hash ^= uint32(by)
		hash *= 31
	}
	return uint64(hash)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// State is the full, serializable simulation snapshot exchanged between
// peers as world state and advanced one physics frame at a time.
type State struct {
	Player1 Player
	Player2 Player
	Enemies [MaxEnemies]Enemy
	Frame   uint32
}

// New builds the starting world: both players at their spawn positions,
// no enemies, frame 0.
func New(bounds Bounds) *State {
	return &State{
		Player1: newPlayer(100, bounds.Height-50),
		Player2: newPlayer(250, bounds.Height-50),
	}
}

// playerBySlot returns a pointer to the Player for slot.
func (s *State) playerBySlot(slot inputbuffer.Slot) *Player {
	if slot == inputbuffer.Slot1 {
		return &s.Player1
	}
	return &s.Player2
}

// Update advances the simulation by one physics frame given both players'
// inputs. A nil entry in inputs means that slot's input couldn't be
// determined (should only happen transiently during prediction — see
// internal/inputbuffer's last-verified fallback) and leaves that player's
// previously applied input in effect.
func (s *State) Update(inputs [inputbuffer.MaxPlayers]*wire.InputSet, bounds Bounds) {
	for slot := inputbuffer.Slot1; slot <= inputbuffer.Slot2; slot++ {
		if set := inputs[slot]; set != nil {
			s.playerBySlot(slot).applyInput(*set)
		}
	}

	updateEnemies(s.Enemies[:], s.Frame, bounds)
	p1Hits := checkBulletCollisions(s.Enemies[:], s.Player1.Bullets[:])
	p2Hits := checkBulletCollisions(s.Enemies[:], s.Player2.Bullets[:])

	s.Player1.update(PhysicsFrameTime, bounds)
	applyBulletHits(&s.Player1, p1Hits)

	s.Player2.update(PhysicsFrameTime, bounds)
	applyBulletHits(&s.Player2, p2Hits)

	s.Frame++
}

func applyBulletHits(p *Player, hits [MaxBullets]bool) {
	for i, hit := range hits {
		if hit {
			p.Bullets[i].Position = Vec2{X: -5, Y: -5}
		}
	}
}

func updateEnemies(enemies []Enemy, frame uint32, bounds Bounds) {
	active := 0
	for i := range enemies {
		if enemies[i].active() {
			active++
			enemies[i].Position.Y += EnemyFallSpeed * PhysicsFrameTime
			if enemies[i].Position.Y >= bounds.Height {
				enemies[i].deactivate()
				active--
			}
		}
	}

	// Move active enemies to the front, stable so spawn order is
	// preserved for equally-active entries.
	stableSortByActive(enemies)

	if frame%EnemySpawnPeriod == 0 && active < MaxEnemies {
		rng := rand.New(rand.NewSource(int64(simpleHash(frame))))
		x := 40 + rng.Float64()*(bounds.Width-80)
		enemies[active] = Enemy{Position: Vec2{X: x, Y: 0}}
	}
}

func stableSortByActive(enemies []Enemy) {
	// Insertion sort: the slice is at most MaxEnemies long, and stability
	// (not reordering two active or two inactive enemies relative to each
	// other) must be exact and deterministic across platforms.
	for i := 1; i < len(enemies); i++ {
		j := i
		for j > 0 && !enemies[j-1].active() && enemies[j].active() {
			enemies[j-1], enemies[j] = enemies[j], enemies[j-1]
			j--
		}
	}
}

func checkBulletCollisions(enemies []Enemy, bullets []Bullet) [MaxBullets]bool {
	var hits [MaxBullets]bool
	for i := range enemies {
		if !enemies[i].active() {
			continue
		}
		for bi, b := range bullets {
			if hits[bi] {
				continue
			}
			if distance(enemies[i].Position, b.Position) < (BulletSize+EnemySize)/2 {
				enemies[i].deactivate()
				hits[bi] = true
			}
		}
	}
	return hits
}

func distance(a, b Vec2) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Serialize encodes the state as the opaque blob sent as ClientWorld or
// ServerWorld payloads. Field order is fixed and must not change without
// bumping a wire-compat concern — this is the literal bytes that travel
// between verified and predicted allocators on the two ends.
func (s *State) Serialize() []byte {
	buf := make([]byte, 0, 4+playerWireSize*2+MaxEnemies*enemyWireSize)
	buf = appendUint32(buf, s.Frame)
	buf = appendPlayer(buf, s.Player1)
	buf = appendPlayer(buf, s.Player2)
	for _, e := range s.Enemies {
		buf = appendVec2(buf, e.Position)
	}
	return buf
}

// Deserialize rebuilds a State from Serialize's output.
func Deserialize(data []byte) (*State, error) {
	const minLen = 4 + playerWireSize*2 + MaxEnemies*enemyWireSize
	if len(data) < minLen {
		return nil, fmt.Errorf("simulation: world state payload too short: have %d bytes, need %d", len(data), minLen)
	}
	s := &State{}
	off := 0
	s.Frame, off = readUint32(data, off)
	s.Player1, off = readPlayer(data, off)
	s.Player2, off = readPlayer(data, off)
	for i := range s.Enemies {
		s.Enemies[i].Position, off = readVec2(data, off)
	}
	return s, nil
}
