// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateInit:     "INIT",
		StateStarting: "STARTING",
		StateRunning:  "RUNNING",
		StateStopping: "STOPPING",
		StateCrashed:  "CRASHED",
		StateShutdown: "SHUTDOWN",
		State(99):     "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestStateClassification(t *testing.T) {
	active := []State{StateStarting, StateRunning, StateStopping}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%v.IsActive() = false, want true", s)
		}
	}

	inactive := []State{StateInit, StateShutdown}
	for _, s := range inactive {
		if !s.IsInactive() {
			t.Errorf("%v.IsInactive() = false, want true", s)
		}
	}

	restartable := []State{StateRunning, StateCrashed, StateShutdown}
	for _, s := range restartable {
		if !s.IsRestartable() {
			t.Errorf("%v.IsRestartable() = false, want true", s)
		}
	}

	if StateInit.IsRestartable() {
		t.Error("StateInit.IsRestartable() = true, want false")
	}
	if StateCrashed.IsActive() {
		t.Error("StateCrashed.IsActive() = true, want false")
	}

	crashable := []State{StateRunning, StateStopping}
	for _, s := range crashable {
		if !s.IsCrashable() {
			t.Errorf("%v.IsCrashable() = false, want true", s)
		}
	}

	notCrashable := []State{StateInit, StateStarting, StateCrashed, StateShutdown}
	for _, s := range notCrashable {
		if s.IsCrashable() {
			t.Errorf("%v.IsCrashable() = true, want false", s)
		}
	}
}

func TestServiceCrashDirectCall(t *testing.T) {
	svc := FromFunc("x", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := svc.Crash(errCrashTestReason); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Crash() on INIT = %v, want ErrNotRunning", err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	if err := svc.Crash(errCrashTestReason); err != nil {
		t.Errorf("Crash() on RUNNING = %v, want nil", err)
	}
	if svc.State() != StateCrashed {
		t.Errorf("State() = %v, want CRASHED", svc.State())
	}
	if !errors.Is(svc.CrashReason(), errCrashTestReason) {
		t.Errorf("CrashReason() = %v, want %v", svc.CrashReason(), errCrashTestReason)
	}

	if err := svc.Crash(errCrashTestReason); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Crash() on already-CRASHED = %v, want ErrNotRunning", err)
	}
}

var errCrashTestReason = errors.New("boom")
