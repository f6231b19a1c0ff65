/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package contracts resolves the canonical start time of a block from its
// contract type and tractor.
package contracts

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

var (
	// ErrNoCanonicalTime means the (contract, tractor) pair has no entry.
	// Callers treat it as a data-integrity failure, not a business outcome.
	ErrNoCanonicalTime = errors.New("no canonical start time")

	// ErrInvalidTable indicates a malformed lookup table file.
	ErrInvalidTable = errors.New("invalid canonical time table")
)

type slotKey struct {
	contract models.ContractType
	tractor  string
}

// Entry is one row of the lookup table.
type Entry struct {
	Contract  models.ContractType `json:"contract"`
	TractorID string              `json:"tractor_id"`
	StartTime string              `json:"start_time"`
}

// Table maps (contract, tractor) to minutes after midnight. A Table is
// read-only after construction and safe for concurrent use.
type Table struct {
	minutes map[slotKey]int
}

var defaultStartTimes = map[models.ContractType]map[string]string{
	models.ContractSolo1: {
		"Tractor_1":  "16:30",
		"Tractor_2":  "20:30",
		"Tractor_3":  "20:30",
		"Tractor_4":  "17:30",
		"Tractor_5":  "21:30",
		"Tractor_6":  "01:30",
		"Tractor_7":  "18:30",
		"Tractor_8":  "00:30",
		"Tractor_9":  "16:30",
		"Tractor_10": "20:30",
	},
	models.ContractSolo2: {
		"Tractor_1": "18:30",
		"Tractor_2": "23:30",
		"Tractor_3": "21:30",
		"Tractor_4": "08:30",
		"Tractor_5": "15:30",
		"Tractor_6": "11:30",
		"Tractor_7": "16:30",
	},
}

// Default returns the built-in fleet table.
func Default() *Table {
	t, err := build(defaultStartTimes)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads a YAML override file and layers it over the built-in table.
// An empty path returns the built-in table.
//
//	solo1:
//	  Tractor_1: "16:30"
//	solo2:
//	  Tractor_4: "08:30"
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read canonical times: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Default().Merge(override), nil
}

// Parse decodes a YAML table.
func Parse(data []byte) (*Table, error) {
	var raw map[models.ContractType]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return build(raw)
}

func build(raw map[models.ContractType]map[string]string) (*Table, error) {
	t := &Table{minutes: make(map[slotKey]int)}
	for contract, tractors := range raw {
		if !contract.Valid() {
			return nil, fmt.Errorf("%w: unknown contract %q", ErrInvalidTable, contract)
		}
		for tractor, clock := range tractors {
			m, err := timewindow.ParseClock(clock)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidTable, contract, tractor, err)
			}
			t.minutes[slotKey{contract, NormalizeTractor(tractor)}] = m
		}
	}
	return t, nil
}

// Merge returns a new table with other's entries overriding t's.
func (t *Table) Merge(other *Table) *Table {
	merged := &Table{minutes: make(map[slotKey]int, len(t.minutes))}
	for k, v := range t.minutes {
		merged.minutes[k] = v
	}
	if other != nil {
		for k, v := range other.minutes {
			merged.minutes[k] = v
		}
	}
	return merged
}

// Minutes returns the canonical start as minutes after midnight.
func (t *Table) Minutes(contract models.ContractType, tractorID string) (int, error) {
	m, ok := t.minutes[slotKey{contract, NormalizeTractor(tractorID)}]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNoCanonicalTime, contract, tractorID)
	}
	return m, nil
}

// StartTime returns the canonical start as "HH:MM".
func (t *Table) StartTime(contract models.ContractType, tractorID string) (string, error) {
	m, err := t.Minutes(contract, tractorID)
	if err != nil {
		return "", err
	}
	return timewindow.FormatClock(m), nil
}

// ForBlock resolves the canonical start of a block.
func (t *Table) ForBlock(b models.Block) (string, error) {
	return t.StartTime(b.SoloType, b.TractorID)
}

// Entries lists the table sorted by contract then tractor number.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.minutes))
	for k, v := range t.minutes {
		out = append(out, Entry{Contract: k.contract, TractorID: k.tractor, StartTime: timewindow.FormatClock(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contract != out[j].Contract {
			return out[i].Contract < out[j].Contract
		}
		if len(out[i].TractorID) != len(out[j].TractorID) {
			return len(out[i].TractorID) < len(out[j].TractorID)
		}
		return out[i].TractorID < out[j].TractorID
	})
	return out
}

// NormalizeTractor maps "tractor 3", "TRACTOR_3" and "3" to "Tractor_3".
// Identifiers that do not follow the numbered pattern are returned trimmed.
func NormalizeTractor(id string) string {
	trimmed := strings.TrimSpace(id)
	rest := strings.ToLower(trimmed)
	rest = strings.TrimPrefix(rest, "tractor")
	rest = strings.TrimLeft(rest, "_- ")
	if rest == "" {
		return trimmed
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return trimmed
		}
	}
	if n := strings.TrimLeft(rest, "0"); n != "" {
		rest = n
	} else {
		rest = "0"
	}
	return "Tractor_" + rest
}
