package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
)

func testReport() *report.Report {
	return &report.Report{
		Input:     "pairs.fasta",
		Normal:    1,
		Irregular: 1,
		Pairs: []report.Pair{
			{Key: "8E10", Accepted: true, HeavyNormal: true, LightNormal: true, HeavyRule: "cysteine-spacing",
				HeavySequence: strings.Repeat("QVQ", 40), LightSequence: "EIVLTQ",
				Loop: "AMILRIGHGQPQGY", LoopFlanked: "carAMILRIGHGQPQGYwg", InsertionLength: 6},
			{Key: "odd", HeavyRule: "cysteine-count", LightNormal: true, HeavySequence: "QVQ", LightSequence: "CC"},
		},
	}
}

func TestCycleMode(t *testing.T) {
	m := newModel(testReport())
	if m.currentMode != modeSummary {
		t.Fatalf("expected initial mode summary, got %v", m.currentMode)
	}
	m = m.cycleMode()
	if m.currentMode != modeHeavy {
		t.Fatalf("expected heavy, got %v", m.currentMode)
	}
	m = m.cycleMode()
	if m.currentMode != modeLight {
		t.Fatalf("expected light, got %v", m.currentMode)
	}
	m = m.cycleMode()
	if m.currentMode != modeSummary {
		t.Fatalf("expected summary, got %v", m.currentMode)
	}
}

func TestBuildRightLinesWrap(t *testing.T) {
	m := newModel(testReport())
	m.width = 120
	m.height = 40
	m.currentMode = modeHeavy
	lines := m.buildRightLines(m.report.Pairs[0])
	// title, verdict, blank, id, blank, then 120 residues wrapped at 74
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d", len(lines))
	}
}

func TestBuildRightLinesSummary(t *testing.T) {
	m := newModel(testReport())
	m.width = 120
	m.height = 40
	out := strings.Join(m.buildRightLines(m.report.Pairs[0]), "\n")
	if !strings.Contains(out, "carAMILRIGHGQPQGYwg") {
		t.Fatalf("summary should show the flanked loop, got:\n%s", out)
	}
	out = strings.Join(m.buildRightLines(m.report.Pairs[1]), "\n")
	if !strings.Contains(out, "no loop found") {
		t.Fatalf("summary should note the missing loop, got:\n%s", out)
	}
}

func TestUpdateKeys(t *testing.T) {
	var tm tea.Model = newModel(testReport())
	tm, _ = tm.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	if got := tm.(model).currentMode; got != modeLight {
		t.Fatalf("expected light mode after '3', got %v", got)
	}
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := tm.(model).currentMode; got != modeSummary {
		t.Fatalf("expected summary after tab, got %v", got)
	}
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	if !tm.(model).showHelp {
		t.Fatalf("expected help to be shown")
	}
	if !strings.Contains(tm.View(), "pairs.fasta") {
		t.Fatalf("help should mention the input file")
	}
	_, cmd := tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}
