// Package report holds the per-pair screening summary written next to the
// FASTA outputs and read back by the browser and web viewer.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Pair summarises one classified heavy/light pair. Sequences are the forms
// that were classified, with placeholders removed.
type Pair struct {
	Key      string `json:"key"`
	Accepted bool   `json:"accepted"`

	LightID          string `json:"light_id"`
	LightSequence    string `json:"light_sequence"`
	LightNormal      bool   `json:"light_normal"`
	LightCysteines   int    `json:"light_cysteines"`
	LightCysDistance int    `json:"light_cys_distance"`

	HeavyID          string `json:"heavy_id"`
	HeavySequence    string `json:"heavy_sequence"`
	HeavyNormal      bool   `json:"heavy_normal"`
	HeavyRule        string `json:"heavy_rule"`
	HeavyCysteines   int    `json:"heavy_cysteines"`
	HeavyCysDistance int    `json:"heavy_cys_distance"`

	Loop            string `json:"cdrh3_loop,omitempty"`
	LoopFlanked     string `json:"cdrh3_flanked,omitempty"`
	InsertionLength int    `json:"insertion_length"`
	Insertion       string `json:"insertion,omitempty"`

	// Placeholders counts the X residues removed from both chains.
	Placeholders int `json:"placeholders,omitempty"`
}

// Verdict is a short human label for the pair outcome.
func (p Pair) Verdict() string {
	if p.Accepted {
		return "normal"
	}
	return "irregular"
}

// Report is the summary of one screening run.
type Report struct {
	RunID       string    `json:"run_id,omitempty"`
	Input       string    `json:"input"`
	CreatedAt   time.Time `json:"created_at"`
	Normal      int       `json:"normal"`
	Irregular   int       `json:"irregular"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	Pairs       []Pair    `json:"pairs"`
}

// Find returns the pair with the given group key.
func (r *Report) Find(key string) (Pair, bool) {
	for _, p := range r.Pairs {
		if p.Key == key {
			return p, true
		}
	}
	return Pair{}, false
}

// Write stores r as indented JSON at path.
func Write(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Read loads a report previously stored with Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
