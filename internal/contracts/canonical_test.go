/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package contracts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/friendsincode/haulroster/internal/models"
)

func TestDefaultTableLookups(t *testing.T) {
	table := Default()

	tests := []struct {
		name     string
		contract models.ContractType
		tractor  string
		want     string
	}{
		{"solo1 tractor 1", models.ContractSolo1, "Tractor_1", "16:30"},
		{"solo1 after midnight", models.ContractSolo1, "Tractor_6", "01:30"},
		{"solo1 tractor 10", models.ContractSolo1, "Tractor_10", "20:30"},
		{"solo2 morning", models.ContractSolo2, "Tractor_4", "08:30"},
		{"lowercase with space", models.ContractSolo2, "tractor 2", "23:30"},
		{"bare number", models.ContractSolo1, "8", "00:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.StartTime(tt.contract, tt.tractor)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if got != tt.want {
				t.Fatalf("StartTime = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMissingEntryIsDataIntegrityError(t *testing.T) {
	table := Default()

	cases := []models.Block{
		{SoloType: models.ContractSolo2, TractorID: "Tractor_9"},
		{SoloType: models.ContractTeam, TractorID: "Tractor_1"},
		{SoloType: models.ContractSolo1, TractorID: ""},
	}
	for _, b := range cases {
		if _, err := table.ForBlock(b); !errors.Is(err, ErrNoCanonicalTime) {
			t.Fatalf("block %s/%q: expected ErrNoCanonicalTime, got %v", b.SoloType, b.TractorID, err)
		}
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canonical.yaml")
	body := []byte("solo2:\n  Tractor_9: \"05:15\"\nsolo1:\n  Tractor_1: \"17:00\"\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got, _ := table.StartTime(models.ContractSolo2, "Tractor_9"); got != "05:15" {
		t.Fatalf("added entry = %q, want 05:15", got)
	}
	if got, _ := table.StartTime(models.ContractSolo1, "Tractor_1"); got != "17:00" {
		t.Fatalf("overridden entry = %q, want 17:00", got)
	}
	if got, _ := table.StartTime(models.ContractSolo1, "Tractor_2"); got != "20:30" {
		t.Fatalf("default entry = %q, want 20:30", got)
	}
}

func TestParseRejectsMalformedTable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad clock", "solo1:\n  Tractor_1: \"25:00\"\n"},
		{"unknown contract", "solo9:\n  Tractor_1: \"10:00\"\n"},
		{"not yaml map", "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.body)); !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestEntriesSortedByTractorNumber(t *testing.T) {
	entries := Default().Entries()
	if len(entries) != 17 {
		t.Fatalf("expected 17 entries, got %d", len(entries))
	}
	if entries[0].Contract != models.ContractSolo1 || entries[0].TractorID != "Tractor_1" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[9].TractorID != "Tractor_10" {
		t.Fatalf("Tractor_10 should sort after Tractor_9, got %+v", entries[9])
	}
}
