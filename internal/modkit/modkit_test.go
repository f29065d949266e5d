// Package modkit provides building blocks for modular Go applications
package modkit

import (
	"testing"
)

// stub module that satisfies Module and records calls
type stub struct {
	ports any
	name  string
}

func (s *stub) Ports() any   { return s.ports }
func (s *stub) Name() string { return s.name }

// compile-time assertion: stub implements Module
var _ Module = (*stub)(nil)

func TestModule_InterfaceSurface(t *testing.T) {
	t.Parallel()

	m := &stub{ports: 42, name: "crawl"}

	if got := m.Ports(); got != 42 {
		t.Fatalf("unexpected Ports value: got=%v want=42", got)
	}
	if got := m.Name(); got != "crawl" {
		t.Fatalf("unexpected Name value: got=%q want=%q", got, "crawl")
	}
}
