package lifecycle

import (
	"errors"
	"sync"
	"testing"
)

func registerAt(t *testing.T, path ...Stage) *StageRegister {
	t.Helper()
	r := NewStageRegister()
	for _, s := range path {
		if _, err := r.Transition(s); err != nil {
			t.Fatalf("setup transition to %s: %v", s, err)
		}
	}
	return r
}

func TestNewStageRegister(t *testing.T) {
	r := NewStageRegister()
	if r.Current() != StageInitializing {
		t.Errorf("initial stage = %v, want Initializing", r.Current())
	}
}

func TestStageRegister_Transition_Valid(t *testing.T) {
	tests := []struct {
		name string
		path []Stage
		to   Stage
	}{
		{"initializing to starting", nil, StageStarting},
		{"starting to ready", []Stage{StageStarting}, StageReady},
		{"starting to failed", []Stage{StageStarting}, StageFailed},
		{"ready to degraded", []Stage{StageStarting, StageReady}, StageDegraded},
		{"degraded to ready", []Stage{StageStarting, StageReady, StageDegraded}, StageReady},
		{"degraded to stopping", []Stage{StageStarting, StageReady, StageDegraded}, StageStopping},
		{"stopping to stopped", []Stage{StageStarting, StageReady, StageStopping}, StageStopped},
		{"stopping to failed", []Stage{StageStarting, StageReady, StageStopping}, StageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registerAt(t, tt.path...)
			from := r.Current()

			prev, err := r.Transition(tt.to)
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if prev != from {
				t.Errorf("previous = %v, want %v", prev, from)
			}
			if r.Current() != tt.to {
				t.Errorf("stage = %v after transition, want %v", r.Current(), tt.to)
			}
		})
	}
}

func TestStageRegister_Transition_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		path         []Stage
		to           Stage
		wantTerminal bool
	}{
		{"initializing to ready skips starting", nil, StageReady, false},
		{"initializing to stopping", nil, StageStopping, false},
		{"starting to degraded", []Stage{StageStarting}, StageDegraded, false},
		{"ready to starting", []Stage{StageStarting, StageReady}, StageStarting, false},
		{"ready to stopped", []Stage{StageStarting, StageReady}, StageStopped, false},
		{"stopping to ready", []Stage{StageStarting, StageReady, StageStopping}, StageReady, false},
		{"stopped to starting", []Stage{StageStarting, StageReady, StageStopping, StageStopped}, StageStarting, true},
		{"stopped to failed", []Stage{StageStarting, StageReady, StageStopping, StageStopped}, StageFailed, true},
		{"failed to ready", []Stage{StageFailed}, StageReady, true},
		{"failed to initializing", []Stage{StageFailed}, StageInitializing, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registerAt(t, tt.path...)
			from := r.Current()

			_, err := r.Transition(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition() error = %v, want ErrInvalidTransition", err)
			}
			if errors.Is(err, ErrTerminalStage) != tt.wantTerminal {
				t.Errorf("errors.Is(ErrTerminalStage) = %v, want %v", !tt.wantTerminal, tt.wantTerminal)
			}
			if r.Current() != from {
				t.Errorf("stage changed to %v on invalid transition, want %v", r.Current(), from)
			}
		})
	}
}

func TestStageRegister_Transition_SameStageIsNoop(t *testing.T) {
	for _, path := range [][]Stage{
		nil,
		{StageStarting, StageReady},
		{StageFailed},
	} {
		r := registerAt(t, path...)
		cur := r.Current()
		prev, err := r.Transition(cur)
		if err != nil {
			t.Errorf("%s -> %s: error = %v, want nil", cur, cur, err)
		}
		if prev != cur || r.Current() != cur {
			t.Errorf("%s -> %s: prev=%v current=%v", cur, cur, prev, r.Current())
		}
	}
}

func TestStageRegister_Reader(t *testing.T) {
	r := NewStageRegister()
	reader := r.Reader()
	if _, ok := reader.(*StageRegister); ok {
		t.Fatal("Reader() must not expose the writable register")
	}
	_, _ = r.Transition(StageStarting)
	if reader.Current() != StageStarting {
		t.Errorf("reader sees %v, want Starting", reader.Current())
	}
}

func TestStageRegister_Concurrency(t *testing.T) {
	r := registerAt(t, StageStarting, StageReady)

	var wg sync.WaitGroup

	// Concurrent reads never observe a value outside Ready/Degraded.
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if s := r.Current(); s != StageReady && s != StageDegraded {
					t.Errorf("observed unexpected stage %v", s)
					return
				}
			}
		}()
	}

	// Concurrent flips between Ready and Degraded.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_, _ = r.Transition(StageDegraded)
				_, _ = r.Transition(StageReady)
			}
		}()
	}

	wg.Wait()
}

func TestStageRegister_ApplyRecordsInOrder(t *testing.T) {
	r := registerAt(t, StageStarting, StageReady)

	var (
		mu      sync.Mutex
		records []Stage
	)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		next := StageDegraded
		if i%2 == 1 {
			next = StageReady
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = r.Apply(next, func(prev Stage) {
					mu.Lock()
					records = append(records, prev, next)
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	// Each record's previous stage is the stage the one before it set.
	last := StageReady
	for i := 0; i < len(records); i += 2 {
		if records[i] != last {
			t.Fatalf("record %d: prev=%v, want %v", i/2, records[i], last)
		}
		last = records[i+1]
	}
	if last != r.Current() {
		t.Errorf("last record %v, register %v", last, r.Current())
	}
}

func TestStageRegister_ApplySkipsRecordWithoutChange(t *testing.T) {
	r := registerAt(t, StageStarting)
	called := false
	record := func(Stage) { called = true }

	if _, err := r.Apply(StageStarting, record); err != nil || called {
		t.Errorf("same stage: err=%v called=%v", err, called)
	}
	if _, err := r.Apply(StageStopped, record); !errors.Is(err, ErrInvalidTransition) || called {
		t.Errorf("illegal step: err=%v called=%v", err, called)
	}
}
