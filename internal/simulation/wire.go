package simulation

import (
	"encoding/binary"
	"math"
)

// Fixed-width wire encoding for State.Serialize/Deserialize. Float64s are
// carried as their IEEE-754 bit pattern so both ends decode identical
// values regardless of host endianness.

const (
	float64WireSize = 8
	vec2WireSize    = float64WireSize * 2
	bulletWireSize  = vec2WireSize * 2
	playerWireSize  = vec2WireSize + float64WireSize + MaxBullets*bulletWireSize + float64WireSize + 1 + float64WireSize
	enemyWireSize   = vec2WireSize
)

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(data []byte, off int) (uint32, int) {
	return binary.LittleEndian.Uint32(data[off : off+4]), off + 4
}

func appendFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

func readFloat64(data []byte, off int) (float64, int) {
	bits := binary.LittleEndian.Uint64(data[off : off+8])
	return math.Float64frombits(bits), off + 8
}

func appendVec2(buf []byte, v Vec2) []byte {
	buf = appendFloat64(buf, v.X)
	buf = appendFloat64(buf, v.Y)
	return buf
}

func readVec2(data []byte, off int) (Vec2, int) {
	var v Vec2
	v.X, off = readFloat64(data, off)
	v.Y, off = readFloat64(data, off)
	return v, off
}

func appendBullet(buf []byte, b Bullet) []byte {
	buf = appendVec2(buf, b.Position)
	buf = appendVec2(buf, b.Velocity)
	return buf
}

func readBullet(data []byte, off int) (Bullet, int) {
	var b Bullet
	b.Position, off = readVec2(data, off)
	b.Velocity, off = readVec2(data, off)
	return b, off
}

func appendPlayer(buf []byte, p Player) []byte {
	buf = appendVec2(buf, p.Position)
	buf = appendFloat64(buf, p.Speed)
	for _, b := range p.Bullets {
		buf = appendBullet(buf, b)
	}
	buf = appendFloat64(buf, p.MovementInput)
	if p.ShootInput {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendFloat64(buf, p.ReloadTimer)
	return buf
}

func readPlayer(data []byte, off int) (Player, int) {
	var p Player
	p.Position, off = readVec2(data, off)
	p.Speed, off = readFloat64(data, off)
	for i := range p.Bullets {
		p.Bullets[i], off = readBullet(data, off)
	}
	p.MovementInput, off = readFloat64(data, off)
	p.ShootInput = data[off] != 0
	off++
	p.ReloadTimer, off = readFloat64(data, off)
	return p, off
}
