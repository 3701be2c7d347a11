// Package antibody classifies antibody heavy and light chain sequences and
// parses the chain markers carried by paired FASTA identifiers.
package antibody

import (
	"errors"
	"strings"
)

// Chain is the chain type declared by a record identifier.
type Chain int

const (
	Unknown Chain = iota
	Heavy
	Light
)

func (c Chain) String() string {
	switch c {
	case Heavy:
		return "heavy"
	case Light:
		return "light"
	default:
		return "unknown"
	}
}

// Opposite returns the partner chain type.
func (c Chain) Opposite() Chain {
	switch c {
	case Heavy:
		return Light
	case Light:
		return Heavy
	default:
		return Unknown
	}
}

const (
	heavyMarker = "H|"
	lightMarker = "L|"

	// Placeholder marks an unidentified or deleted residue.
	Placeholder = "X"
)

var (
	ErrMissingMarker   = errors.New("identifier has no H| or L| chain marker")
	ErrAmbiguousMarker = errors.New("identifier carries both H| and L| chain markers")
)

// Identifier is a parsed record header.
type Identifier struct {
	Raw   string
	Chain Chain
	// Key is the pipe-delimited field following the first '|'. Heavy and
	// light records of one antibody share it.
	Key string
}

// ParseIdentifier extracts the chain marker and group key from a header.
// A leading '>' is tolerated.
func ParseIdentifier(header string) (Identifier, error) {
	id := Identifier{Raw: strings.TrimPrefix(header, ">")}
	hasHeavy := strings.Contains(id.Raw, heavyMarker)
	hasLight := strings.Contains(id.Raw, lightMarker)
	switch {
	case hasHeavy && hasLight:
		return id, ErrAmbiguousMarker
	case hasHeavy:
		id.Chain = Heavy
	case hasLight:
		id.Chain = Light
	default:
		return id, ErrMissingMarker
	}
	fields := strings.SplitN(id.Raw, "|", 3)
	id.Key = fields[1]
	return id, nil
}

// StripPlaceholders removes placeholder residues from seq.
func StripPlaceholders(seq string) string {
	return strings.ReplaceAll(seq, Placeholder, "")
}
