package main

import (
	"encoding/json"
	"testing"

	"arena-server/arena"
)

func TestClientInputToArena(t *testing.T) {
	tests := []struct {
		in     ClientInput
		mx, my int
	}{
		{ClientInput{}, 0, 0},
		{ClientInput{Right: true}, 1, 0},
		{ClientInput{Left: true, Up: true}, -1, 1},
		{ClientInput{Down: true}, 0, -1},
		{ClientInput{Left: true, Right: true, Up: true, Down: true}, 0, 0},
	}
	for _, tt := range tests {
		got := tt.in.ToArena()
		if got.MoveX != tt.mx || got.MoveY != tt.my {
			t.Errorf("%+v: expected (%d,%d), got (%d,%d)", tt.in, tt.mx, tt.my, got.MoveX, got.MoveY)
		}
	}
}

func TestClientInputJSONKeys(t *testing.T) {
	var in ClientInput
	if err := json.Unmarshal([]byte(`{"u":true,"f":true,"ax":1.5,"ay":-2}`), &in); err != nil {
		t.Fatal(err)
	}
	if !in.Up || !in.Fire || in.AX != 1.5 || in.AY != -2 {
		t.Errorf("unexpected decode %+v", in)
	}
}

func TestBinaryInputRoundTrip(t *testing.T) {
	in := ClientInput{Up: true, Right: true, Fire: true, AX: 12.34, AY: -56.78}
	msg := EncodeBinaryInput(in)
	if len(msg) != binInputLen {
		t.Fatalf("expected %d bytes, got %d", binInputLen, len(msg))
	}
	out, ok := DecodeBinaryInput(msg)
	if !ok {
		t.Fatal("decode failed")
	}
	if out.Up != in.Up || out.Down || out.Left || !out.Right || !out.Fire {
		t.Errorf("flags mismatch: %+v", out)
	}
	if out.AX != 12.34 || out.AY != -56.78 {
		t.Errorf("aim mismatch: %v %v", out.AX, out.AY)
	}
}

func TestBinaryInputClampsAim(t *testing.T) {
	out, ok := DecodeBinaryInput(EncodeBinaryInput(ClientInput{AX: 1e6, AY: -1e6}))
	if !ok {
		t.Fatal("decode failed")
	}
	if out.AX != 327.67 || out.AY != -327.68 {
		t.Errorf("expected clamped aim, got %v %v", out.AX, out.AY)
	}
}

func TestDecodeBinaryInputRejects(t *testing.T) {
	for _, msg := range [][]byte{
		nil,
		{binInputTag, 0, 0, 0, 0},
		{0x02, 0, 0, 0, 0, 0},
		{binInputTag, 0, 0, 0, 0, 0, 0},
	} {
		if _, ok := DecodeBinaryInput(msg); ok {
			t.Errorf("%v should be rejected", msg)
		}
	}
}

func TestNewGameState(t *testing.T) {
	f := arena.Frame{
		Tick:  8,
		Arena: 150,
		Bullets: []arena.BodyView{
			{ID: 7, X: 1, Y: 2, Radius: 0.1},
		},
		Enemies: []arena.EnemyView{
			{BodyView: arena.BodyView{ID: 9, X: 3, Y: 4, Radius: 0.5}, HP: 50, MaxHP: 100, Health: 0.5},
		},
	}
	f.Player.ID = 1
	f.Player.VX = 10

	gs := NewGameState(f, 3)
	if gs.Tick != 8 || gs.Arena != 150 || gs.Kills != 3 {
		t.Errorf("header mismatch %+v", gs)
	}
	if gs.Player.ID != 1 || gs.Player.VX != 10 {
		t.Errorf("player mismatch %+v", gs.Player)
	}
	if len(gs.Bullets) != 1 || gs.Bullets[0].ID != 7 || gs.Bullets[0].R != 0.1 {
		t.Errorf("bullets mismatch %+v", gs.Bullets)
	}
	if len(gs.Enemies) != 1 || gs.Enemies[0].HP != 50 || gs.Enemies[0].Health != 0.5 {
		t.Errorf("enemies mismatch %+v", gs.Enemies)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Ace  ", "Ace"},
		{"", "Pilot"},
		{"   ", "Pilot"},
		{"abcdefghijklmnopqrstuvwxyz", "abcdefghijklmnop"},
	}
	for _, tt := range tests {
		if got := CleanName(tt.in, defaultMemberName, maxNameLen); got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateIDLength(t *testing.T) {
	id := GenerateID(4)
	if len(id) != 8 {
		t.Errorf("expected 8 hex chars, got %d (%s)", len(id), id)
	}
	if GenerateID(4) == id {
		t.Error("consecutive ids should differ")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
