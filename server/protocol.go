package main

import (
	"encoding/json"
	"math"

	"arena-server/arena"
	"github.com/jakecoffman/cp"
)

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgInput    = "input"
	MsgCreate   = "create" // create session
	MsgList     = "list"   // list sessions
	MsgCheck    = "check"  // check if session exists
	MsgReset    = "reset"  // pilot back to the origin, or full arena rebuild
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
	MsgProfile  = "profile"
)

// Server -> Client message types
const (
	MsgState       = "state" // only used by tests; frames travel as binary msgpack
	MsgWelcome     = "welcome"
	MsgKill        = "kill"
	MsgSessions    = "sessions"
	MsgJoined      = "joined"
	MsgCreated     = "created" // session created, client should navigate
	MsgError       = "error"
	MsgChecked     = "checked" // session check response
	MsgPilot       = "pilot"   // a spectator was promoted to pilot
	MsgRunOver     = "run_over"
	MsgAuthOK      = "auth_ok"
	MsgProfileData = "profile_data"
)

// Roles of a session member
const (
	RolePilot     = "pilot"
	RoleSpectator = "spectator"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ClientInput is the held-key state sent by the pilot
type ClientInput struct {
	Up    bool    `json:"u"`
	Down  bool    `json:"dn"`
	Left  bool    `json:"l"`
	Right bool    `json:"r"`
	Fire  bool    `json:"f"`
	AX    float64 `json:"ax"` // aim point, world units
	AY    float64 `json:"ay"`
}

// ToArena converts held keys into the per-axis intent of one tick. World Y
// grows upward.
func (in ClientInput) ToArena() arena.Input {
	out := arena.Input{Fire: in.Fire, Aim: cp.Vector{X: in.AX, Y: in.AY}}
	if in.Right {
		out.MoveX++
	}
	if in.Left {
		out.MoveX--
	}
	if in.Up {
		out.MoveY++
	}
	if in.Down {
		out.MoveY--
	}
	return out
}

// Binary input: 6 bytes [0x01, flags, ax_hi, ax_lo, ay_hi, ay_lo].
// Aim is a signed int16 in hundredths of a world unit.
const (
	binInputTag = 0x01
	binInputLen = 6

	flagUp    = 0x01
	flagDown  = 0x02
	flagLeft  = 0x04
	flagRight = 0x08
	flagFire  = 0x10
)

// DecodeBinaryInput parses a compact input message. ok is false when the
// message is not a binary input.
func DecodeBinaryInput(msg []byte) (ClientInput, bool) {
	if len(msg) != binInputLen || msg[0] != binInputTag {
		return ClientInput{}, false
	}
	flags := msg[1]
	ax := int16(uint16(msg[2])<<8 | uint16(msg[3]))
	ay := int16(uint16(msg[4])<<8 | uint16(msg[5]))
	return ClientInput{
		Up:    flags&flagUp != 0,
		Down:  flags&flagDown != 0,
		Left:  flags&flagLeft != 0,
		Right: flags&flagRight != 0,
		Fire:  flags&flagFire != 0,
		AX:    float64(ax) / 100,
		AY:    float64(ay) / 100,
	}, true
}

// EncodeBinaryInput is the inverse of DecodeBinaryInput. Aim values outside
// the int16 range are clamped.
func EncodeBinaryInput(in ClientInput) []byte {
	var flags byte
	if in.Up {
		flags |= flagUp
	}
	if in.Down {
		flags |= flagDown
	}
	if in.Left {
		flags |= flagLeft
	}
	if in.Right {
		flags |= flagRight
	}
	if in.Fire {
		flags |= flagFire
	}
	ax := uint16(int16(math.Round(Clamp(in.AX*100, -32768, 32767))))
	ay := uint16(int16(math.Round(Clamp(in.AY*100, -32768, 32767))))
	return []byte{binInputTag, flags, byte(ax >> 8), byte(ax), byte(ay >> 8), byte(ay)}
}

// JoinMsg is sent when a client wants to join a session
type JoinMsg struct {
	Name      string `json:"name"`
	SessionID string `json:"sid"`
}

// CreateMsg is sent when a client wants to create a session
type CreateMsg struct {
	SessionName string `json:"sname"`
}

// ResetMsg asks for a reset; Full rebuilds the whole arena
type ResetMsg struct {
	Full bool `json:"full"`
}

// PlayerState is the pilot's circle in a frame
type PlayerState struct {
	ID       uint64  `msgpack:"id" json:"id"`
	X        float64 `msgpack:"x" json:"x"`
	Y        float64 `msgpack:"y" json:"y"`
	R        float64 `msgpack:"r" json:"r"`
	VX       float64 `msgpack:"vx" json:"vx"`
	VY       float64 `msgpack:"vy" json:"vy"`
	Cooldown float64 `msgpack:"cd" json:"cd"`
}

// BulletState is broadcast per bullet
type BulletState struct {
	ID uint64  `msgpack:"id" json:"id"`
	X  float64 `msgpack:"x" json:"x"`
	Y  float64 `msgpack:"y" json:"y"`
	R  float64 `msgpack:"r" json:"r"`
}

// EnemyState is broadcast per live enemy
type EnemyState struct {
	ID     uint64  `msgpack:"id" json:"id"`
	X      float64 `msgpack:"x" json:"x"`
	Y      float64 `msgpack:"y" json:"y"`
	R      float64 `msgpack:"r" json:"r"`
	HP     int     `msgpack:"hp" json:"hp"`
	MaxHP  int     `msgpack:"mhp" json:"mhp"`
	Health float64 `msgpack:"h" json:"h"`
}

// GameState is one broadcast frame
type GameState struct {
	Tick    uint64        `msgpack:"tick" json:"tick"`
	Arena   float64       `msgpack:"arena" json:"arena"`
	Player  PlayerState   `msgpack:"p" json:"p"`
	Bullets []BulletState `msgpack:"b" json:"b"`
	Enemies []EnemyState  `msgpack:"e" json:"e"`
	Kills   int           `msgpack:"k" json:"k"`
}

// NewGameState converts a simulation frame to its wire form
func NewGameState(f arena.Frame, kills int) GameState {
	gs := GameState{
		Tick:  f.Tick,
		Arena: f.Arena,
		Player: PlayerState{
			ID:       uint64(f.Player.ID),
			X:        f.Player.X,
			Y:        f.Player.Y,
			R:        f.Player.Radius,
			VX:       f.Player.VX,
			VY:       f.Player.VY,
			Cooldown: f.Player.Cooldown,
		},
		Bullets: make([]BulletState, 0, len(f.Bullets)),
		Enemies: make([]EnemyState, 0, len(f.Enemies)),
		Kills:   kills,
	}
	for _, b := range f.Bullets {
		gs.Bullets = append(gs.Bullets, BulletState{ID: uint64(b.ID), X: b.X, Y: b.Y, R: b.Radius})
	}
	for _, e := range f.Enemies {
		gs.Enemies = append(gs.Enemies, EnemyState{
			ID:     uint64(e.ID),
			X:      e.X,
			Y:      e.Y,
			R:      e.Radius,
			HP:     e.HP,
			MaxHP:  e.MaxHP,
			Health: e.Health,
		})
	}
	return gs
}

// WelcomeMsg is sent to a member when they join
type WelcomeMsg struct {
	ID    string  `json:"id"`
	Role  string  `json:"role"`
	Arena float64 `json:"arena"`
}

// KillMsg is broadcast to the session when an enemy dies
type KillMsg struct {
	EnemyID uint64 `json:"eid"`
	Melee   bool   `json:"melee,omitempty"`
	Kills   int    `json:"k"` // run total
}

// RunOverMsg summarises a finished run for its pilot
type RunOverMsg struct {
	Kills        int              `json:"k"`
	Shots        int              `json:"s"`
	Melee        int              `json:"m"`
	Duration     float64          `json:"dur"`
	Achievements []AchievementDef `json:"ach,omitempty"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with a password
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a stored token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"pid"`
}

// ProfileDataMsg carries lifetime stats of the authenticated pilot
type ProfileDataMsg struct {
	Username     string   `json:"username"`
	Runs         int      `json:"runs"`
	Kills        int      `json:"kills"`
	Shots        int      `json:"shots"`
	BestKills    int      `json:"best"`
	Playtime     float64  `json:"playtime"`
	Achievements []string `json:"ach"`
}
