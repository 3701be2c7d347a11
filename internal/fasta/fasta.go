package fasta

// Package fasta contains the small amount of FASTA handling the screener needs:
// unwrapping line-wrapped records into canonical form and writing records back
// out. Sequences are not validated.

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single input line. Unwrapped antibody sequences are short
// but canonical files produced elsewhere may carry whole genomes on one line.
const maxLineSize = 16 << 20

// Record is a single FASTA entry. Header is stored without the leading '>'.
type Record struct {
	Header   string
	Sequence string
}

// String renders the record in canonical two-line form, including the
// trailing newline.
func (r Record) String() string {
	return ">" + r.Header + "\n" + r.Sequence + "\n"
}

// scan calls fn for every record in r. Records start only at lines beginning
// with '>'; anything before the first such line is ignored.
func scan(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		current Record
		seq     strings.Builder
		open    bool
	)
	flush := func() error {
		if !open {
			return nil
		}
		current.Sequence = seq.String()
		seq.Reset()
		return fn(current)
	}
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			if err := flush(); err != nil {
				return err
			}
			current = Record{Header: line[1:]}
			open = true
			continue
		}
		if open {
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read fasta: %w", err)
	}
	return flush()
}

// ParseFasta reads FASTA records from r and returns them. Sequence lines are
// concatenated without their line breaks.
func ParseFasta(r io.Reader) ([]Record, error) {
	var records []Record
	err := scan(r, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Normalize rewrites the records in r to w so that each one occupies exactly
// one header line followed by one unwrapped sequence line. It returns the
// number of records written. Normalizing canonical input reproduces it byte
// for byte.
func Normalize(r io.Reader, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	err := scan(r, func(rec Record) error {
		if _, err := bw.WriteString(rec.String()); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write canonical fasta: %w", err)
	}
	return n, nil
}
