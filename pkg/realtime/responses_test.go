package realtime

import (
	"fmt"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := newResponseRegistry()

	if r.IsActive("resp_1") {
		t.Fatal("unknown id must not be active")
	}

	r.Begin("resp_1")
	if !r.IsActive("resp_1") {
		t.Fatal("resp_1 should be active after Begin")
	}
	if got := r.Current(); got != "resp_1" {
		t.Fatalf("current = %q", got)
	}

	r.Finish("resp_1", StatusCompleted)
	if r.IsActive("resp_1") {
		t.Fatal("completed response must not be active")
	}
	if status, ok := r.Status("resp_1"); !ok || status != StatusCompleted {
		t.Fatalf("status = %v, %v", status, ok)
	}
}

// A ghost id (never announced, or long since pruned) must read as
// non-active even while other responses are in flight; the zero value
// of the status map must never pass for ACTIVE.
func TestRegistryUnknownIDIsNeverActive(t *testing.T) {
	r := newResponseRegistry()
	r.Begin("resp_1")

	if r.IsActive("resp_ghost") {
		t.Fatal("never-announced id reported active")
	}
	if r.IsActive("") {
		t.Fatal("empty id reported active")
	}
	if !r.IsActive("resp_1") {
		t.Fatal("announced response should be active")
	}
}

func TestRegistryCancelIsCheckAndSet(t *testing.T) {
	r := newResponseRegistry()
	r.Begin("resp_1")

	if !r.Cancel("resp_1") {
		t.Fatal("first cancel must win")
	}
	if r.Cancel("resp_1") {
		t.Fatal("second cancel must be a no-op")
	}
	if r.Cancel("resp_unknown") {
		t.Fatal("cancel of unknown id must be a no-op")
	}
}

func TestRegistryCanceledStaysCanceled(t *testing.T) {
	r := newResponseRegistry()
	r.Begin("resp_1")
	r.Cancel("resp_1")

	// The server's terminal report arrives after the local cancel.
	r.Finish("resp_1", StatusCompleted)

	status, ok := r.Status("resp_1")
	if !ok || status != StatusCanceled {
		t.Fatalf("status = %v, want CANCELED", status)
	}
	if r.IsActive("resp_1") {
		t.Fatal("terminal response resurrected")
	}
}

func TestRegistryNewResponseSupersedesCurrent(t *testing.T) {
	r := newResponseRegistry()
	r.Begin("resp_1")
	r.Begin("resp_2")

	if got := r.Current(); got != "resp_2" {
		t.Fatalf("current = %q, want resp_2", got)
	}
	if !r.IsActive("resp_2") {
		t.Fatal("resp_2 should be active")
	}
}

func TestRegistryPrunesOldTerminalRecords(t *testing.T) {
	r := newResponseRegistry()

	for i := 0; i < maxResponseRecords+10; i++ {
		id := fmt.Sprintf("resp_%03d", i)
		r.Begin(id)
		r.Finish(id, StatusCompleted)
	}
	r.Begin("resp_live")

	if _, ok := r.Status("resp_000"); ok {
		t.Fatal("oldest terminal record should be pruned")
	}
	// A pruned id behaves like any unknown id.
	if r.IsActive("resp_000") {
		t.Fatal("pruned id must not be active")
	}
	if !r.IsActive("resp_live") {
		t.Fatal("active response must survive pruning")
	}
}

func TestRegistryNeverPrunesActive(t *testing.T) {
	r := newResponseRegistry()
	r.Begin("resp_old")
	r.Cancel("resp_old")
	for i := 0; i < maxResponseRecords; i++ {
		r.Begin(fmt.Sprintf("resp_%03d", i))
	}
	if _, ok := r.Status("resp_old"); ok {
		t.Fatal("terminal record should have been pruned first")
	}
	if !r.IsActive(fmt.Sprintf("resp_%03d", maxResponseRecords-1)) {
		t.Fatal("latest active response lost")
	}
}

func TestStatusFromWire(t *testing.T) {
	tests := []struct {
		wire string
		want ResponseStatus
	}{
		{"cancelled", StatusCanceled},
		{"canceled", StatusCanceled},
		{"incomplete", StatusIncomplete},
		{"failed", StatusFailed},
		{"completed", StatusCompleted},
		{"", StatusCompleted},
	}
	for _, tt := range tests {
		if got := statusFromWire(tt.wire); got != tt.want {
			t.Errorf("statusFromWire(%q) = %v, want %v", tt.wire, got, tt.want)
		}
	}
}
