// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package store

import (
	"io"
	"log"
	"path/filepath"
	"testing"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestStore_LabelRoundtrip(t *testing.T) {
	s := memStore(t)

	if _, err := s.SetLabel(TypeSource, 0, 0, 5, "CAM 1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	text, ok := s.GetLabel(TypeSource, 0, 0, 5)
	if !ok || text != "CAM 1" {
		t.Errorf("get = %q, %v", text, ok)
	}

	// Destination with the same indices is a distinct key.
	if _, ok := s.GetLabel(TypeDestination, 0, 0, 5); ok {
		t.Error("destination label should not exist")
	}
}

func TestStore_LabelLastWriteWins(t *testing.T) {
	s := memStore(t)
	s.SetLabel(TypeDestination, 0, 0, 1, "MON A")
	s.SetLabel(TypeDestination, 0, 0, 1, "MON B")

	text, _ := s.GetLabel(TypeDestination, 0, 0, 1)
	if text != "MON B" {
		t.Errorf("text = %q, want MON B", text)
	}
	if len(s.AllLabels()) != 1 {
		t.Errorf("labels = %d, want 1", len(s.AllLabels()))
	}
}

func TestStore_InvalidLabelType(t *testing.T) {
	s := memStore(t)
	if _, err := s.SetLabel("sink", 0, 0, 0, "x"); err == nil {
		t.Error("expected error for unknown label type")
	}
}

func TestStore_AllLabelsSorted(t *testing.T) {
	s := memStore(t)
	s.SetLabel(TypeSource, 0, 0, 2, "b")
	s.SetLabel(TypeSource, 0, 0, 1, "a")
	s.SetLabel(TypeDestination, 0, 0, 9, "z")

	labels := s.AllLabels()
	if len(labels) != 3 {
		t.Fatalf("labels = %d", len(labels))
	}
	if labels[0].Type != TypeDestination {
		t.Errorf("labels[0] = %+v, want destination first", labels[0])
	}
	if labels[1].Index != 1 || labels[2].Index != 2 {
		t.Errorf("source order = %d, %d", labels[1].Index, labels[2].Index)
	}
}

func TestStore_SalvoRoundtrip(t *testing.T) {
	s := memStore(t)

	salvo := Salvo{
		ID:   1,
		Name: "studio swap",
		Entries: []SalvoEntry{
			{Destination: 1, Source: 10, Level: 0},
			{Destination: 2, Source: 11, Level: 0},
		},
	}
	if err := s.SaveSalvo(salvo); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := s.GetSalvo(1)
	if !ok || got.Name != "studio swap" || len(got.Entries) != 2 {
		t.Errorf("get = %+v, %v", got, ok)
	}

	if _, ok := s.GetSalvo(99); ok {
		t.Error("unknown salvo should not resolve")
	}

	if err := s.SaveSalvo(Salvo{ID: -1}); err == nil {
		t.Error("expected error for negative id")
	}
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swp08d.db")
	logger := log.New(io.Discard, "", 0)

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetLabel(TypeSource, 0, 0, 5, "CAM 1")
	s.SaveSalvo(Salvo{ID: 2, Name: "evening", Entries: []SalvoEntry{{Destination: 3, Source: 4, Level: 0}}})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	text, ok := reopened.GetLabel(TypeSource, 0, 0, 5)
	if !ok || text != "CAM 1" {
		t.Errorf("label after reopen = %q, %v", text, ok)
	}
	salvo, ok := reopened.GetSalvo(2)
	if !ok || salvo.Name != "evening" || len(salvo.Entries) != 1 {
		t.Errorf("salvo after reopen = %+v, %v", salvo, ok)
	}
}
