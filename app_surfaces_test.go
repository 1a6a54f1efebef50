package main

import (
	"reflect"
	"testing"

	"webdock/internal/inject"
)

func TestSetSurfaces(t *testing.T) {
	tests := []struct {
		name       string
		initialIDs []string
		initialAct string
		ids        []string
		active     string
		wantIDs    []string
		wantActive string
	}{
		{
			name:       "explicit active wins",
			ids:        []string{"a", "b", "c"},
			active:     "b",
			wantIDs:    []string{"a", "b", "c"},
			wantActive: "b",
		},
		{
			name:       "empty active keeps previous selection",
			initialIDs: []string{"a", "b"},
			initialAct: "b",
			ids:        []string{"a", "b", "c"},
			active:     "",
			wantIDs:    []string{"a", "b", "c"},
			wantActive: "b",
		},
		{
			name:       "vanished active falls back to first",
			initialIDs: []string{"a", "b"},
			initialAct: "b",
			ids:        []string{"c", "d"},
			active:     "",
			wantIDs:    []string{"c", "d"},
			wantActive: "c",
		},
		{
			name:       "unknown explicit active falls back to first",
			ids:        []string{"a", "b"},
			active:     "zzz",
			wantIDs:    []string{"a", "b"},
			wantActive: "a",
		},
		{
			name:       "empty set clears active",
			initialIDs: []string{"a"},
			initialAct: "a",
			ids:        nil,
			active:     "",
			wantIDs:    []string{},
			wantActive: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewApp()
			a.setSurfaces(tt.initialIDs, tt.initialAct)
			a.setSurfaces(tt.ids, tt.active)

			got := a.ListSurfaces()
			if len(got) != 0 || len(tt.wantIDs) != 0 {
				if !reflect.DeepEqual(got, tt.wantIDs) {
					t.Errorf("ListSurfaces() = %v, want %v", got, tt.wantIDs)
				}
			}
			if active := a.ActiveSurfaceID(); active != tt.wantActive {
				t.Errorf("ActiveSurfaceID() = %q, want %q", active, tt.wantActive)
			}
		})
	}
}

func TestCycleNextSurface(t *testing.T) {
	a := NewApp()
	a.setSurfaces([]string{"a", "b", "c"}, "a")

	if got := a.CycleNextSurface(); got != "b" {
		t.Fatalf("first cycle = %q, want %q", got, "b")
	}
	if got := a.CycleNextSurface(); got != "c" {
		t.Fatalf("second cycle = %q, want %q", got, "c")
	}
	// Wraps back to the first surface.
	if got := a.CycleNextSurface(); got != "a" {
		t.Fatalf("third cycle = %q, want %q", got, "a")
	}
	if got := a.ActiveSurfaceID(); got != "a" {
		t.Fatalf("active after wrap = %q, want %q", got, "a")
	}
}

func TestCycleNextSurfaceSingleSurfaceIsNoop(t *testing.T) {
	a := NewApp()
	a.setSurfaces([]string{"only"}, "only")

	if got := a.CycleNextSurface(); got != "only" {
		t.Fatalf("cycle with one surface = %q, want %q", got, "only")
	}
}

func TestCycleNextSurfaceEmptyIsNoop(t *testing.T) {
	a := NewApp()
	if got := a.CycleNextSurface(); got != "" {
		t.Fatalf("cycle with no surfaces = %q, want empty", got)
	}
}

func TestExecutorHasFrame(t *testing.T) {
	a := NewApp()
	a.setSurfaces([]string{"tab1", "tab2"}, "tab1")
	exec := appInjectExecutor{a: a}

	tests := []struct {
		frame string
		want  bool
	}{
		{inject.SurfaceFrameName("tab1"), true},
		{inject.SurfaceFrameName("tab2"), true},
		{inject.SurfaceFrameName("gone"), false},
		{"tab1", false},            // bare id without frame prefix
		{"unrelated-frame", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := exec.HasFrame(tt.frame); got != tt.want {
			t.Errorf("HasFrame(%q) = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestExecutorExecuteWithoutBridgeIsThrownError(t *testing.T) {
	a := NewApp()
	exec := appInjectExecutor{a: a}

	_, err := exec.Execute(inject.SurfaceFrameName("tab1"), "req-1", "hello", true)
	if err == nil {
		t.Fatalf("Execute without a bridge should return an error")
	}
}
