package engine

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidationConstants(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		expected int
	}{
		{"MinMapSize", MinMapSize, 3},
		{"MaxMapSize", MaxMapSize, 100},
		{"MinMoveSpeed", MinMoveSpeed, 1},
		{"MaxMoveSpeed", MaxMoveSpeed, 6},
		{"MaxBulkMoves", MaxBulkMoves, 50},
		{"DefaultGuideTag", DefaultGuideTag, 7},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.actual != test.expected {
				t.Errorf("Expected %s to be %d, got %d", test.name, test.expected, test.actual)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		wantErr  bool
	}{
		{"up", DirUp, false},
		{"D", DirDown, false},
		{"west", DirLeft, false},
		{"6", DirRight, false},
		{"", DirNone, false},
		{"diagonal", DirNone, true},
	}

	for _, test := range tests {
		got, err := ParseDirection(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseDirection(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
		}
		if got != test.expected {
			t.Errorf("ParseDirection(%q) = %s, want %s", test.input, got, test.expected)
		}
	}
}

func TestDirectionHelpers(t *testing.T) {
	for _, d := range Directions {
		if d.Reverse().Reverse() != d {
			t.Errorf("Reverse of reverse of %s should be itself", d)
		}
		if d.IsVertical() == d.IsHorizontal() {
			t.Errorf("%s must be exactly one of vertical or horizontal", d)
		}
		if d.DX()+d.Reverse().DX() != 0 || d.DY()+d.Reverse().DY() != 0 {
			t.Errorf("%s and its reverse must cancel out", d)
		}
	}
	if DirNone.Valid() || DirNone.Reverse() != DirNone {
		t.Error("DirNone must be invalid and its own reverse")
	}
	if blockBit(DirDown) != BlockDown || blockBit(DirUp) != BlockUp {
		t.Error("block bits must follow the numpad passage flags")
	}
}

func TestDirectionJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		D Direction `json:"d"`
	}{DirLeft})
	if err != nil {
		t.Fatalf("Failed to marshal direction: %v", err)
	}
	if string(data) != `{"d":"left"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var ds []Direction
	if err := json.Unmarshal([]byte(`["up", 2, "r"]`), &ds); err != nil {
		t.Fatalf("Failed to unmarshal directions: %v", err)
	}
	if len(ds) != 3 || ds[0] != DirUp || ds[1] != DirDown || ds[2] != DirRight {
		t.Errorf("Unexpected directions: %v", ds)
	}

	var d Direction
	if err := json.Unmarshal([]byte(`true`), &d); err == nil {
		t.Error("Expected error for boolean direction")
	}
}

func TestMovingResult(t *testing.T) {
	r := Rejected()
	if r.Pass || r.X != -1 || r.Y != -1 {
		t.Errorf("Rejected result should be unset, got %+v", r)
	}
	a := Allowed(3, 4.5)
	if !a.Pass || a.X != 3 || a.Y != 4.5 {
		t.Errorf("Allowed result should carry its destination, got %+v", a)
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := map[float64]float64{
		0.5:  1,
		1.5:  2,
		-0.5: 0,
		2.49: 2,
	}
	for in, want := range tests {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%g) = %g, want %g", in, got, want)
		}
	}
}

func TestGameStateJSONMarshaling(t *testing.T) {
	e := NewEngineWithDefaults()
	e.Move("right")
	state := e.GetState()

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Failed to marshal GameState: %v", err)
	}
	body := string(data)
	for _, field := range []string{`"config_name":"tutorial"`, `"fall_state":"none"`, `"moving_mode":"default"`, `"direction":"right"`} {
		if !strings.Contains(body, field) {
			t.Errorf("Expected %s in state JSON", field)
		}
	}

	var decoded GameState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal GameState: %v", err)
	}
	if decoded.Player.X != state.Player.X || decoded.TotalMoves != 1 {
		t.Errorf("Decoded state mismatch: %+v", decoded.Player)
	}
}

func TestMoveHistoryEntryJSONMarshaling(t *testing.T) {
	entry := MoveHistoryEntry{
		Action:       "up",
		Outcome:      OutcomeCliffJump,
		FromPosition: Position{X: 1, Y: 1},
		ToPosition:   Position{X: 1, Y: 3},
		RidingID:     NoCharacter,
		Frame:        42,
		Timestamp:    time.Now().Unix(),
		Success:      true,
		MoveNumber:   1,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Failed to marshal MoveHistoryEntry: %v", err)
	}
	var decoded MoveHistoryEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal MoveHistoryEntry: %v", err)
	}
	if decoded != entry {
		t.Errorf("Expected %+v, got %+v", entry, decoded)
	}
}
