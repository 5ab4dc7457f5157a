package lifecycle

import (
	"encoding/json"
	"testing"
)

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageInitializing, "Initializing"},
		{StageStarting, "Starting"},
		{StageReady, "Ready"},
		{StageDegraded, "Degraded"},
		{StageStopping, "Stopping"},
		{StageStopped, "Stopped"},
		{StageFailed, "Failed"},
		{Stage(99), "Unknown(99)"},
		{Stage(-1), "Unknown(-1)"},
	}

	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %s, want %s", int32(tt.stage), got, tt.want)
		}
	}
}

func TestParseStage(t *testing.T) {
	for s := StageInitializing; s <= StageFailed; s++ {
		got, err := ParseStage(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStage(%q) = %v, %v; want %v", s.String(), got, err, s)
		}
	}
	if got, err := ParseStage(" degraded "); err != nil || got != StageDegraded {
		t.Errorf("ParseStage is not case/space tolerant: %v, %v", got, err)
	}
	if _, err := ParseStage("running"); err == nil {
		t.Error("ParseStage(running) should fail")
	}
}

func TestStage_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Stage{"stage": StageDegraded})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"stage":"Degraded"}` {
		t.Errorf("got %s", b)
	}
}

func TestCanTransition(t *testing.T) {
	legal := map[Stage][]Stage{
		StageInitializing: {StageStarting, StageFailed},
		StageStarting:     {StageReady, StageFailed},
		StageReady:        {StageDegraded, StageStopping, StageFailed},
		StageDegraded:     {StageReady, StageStopping, StageFailed},
		StageStopping:     {StageStopped, StageFailed},
		StageStopped:      nil,
		StageFailed:       nil,
	}

	for from := StageInitializing; from <= StageFailed; from++ {
		allowed := map[Stage]bool{}
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for to := StageInitializing; to <= StageFailed; to++ {
			if got := CanTransition(from, to); got != allowed[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestStage_IsTerminal(t *testing.T) {
	for s := StageInitializing; s <= StageFailed; s++ {
		want := s == StageStopped || s == StageFailed
		if s.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, s.IsTerminal(), want)
		}
	}
}
