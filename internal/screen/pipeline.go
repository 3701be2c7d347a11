// Package screen pairs heavy and light chain records from a FASTA stream,
// classifies each pair and routes it to the accepted or filtered output.
package screen

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/antibody"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/fasta"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
)

// Config controls one screening run. The writers are owned by the caller;
// Run flushes after every pair but never closes them.
type Config struct {
	Accepted io.Writer
	Filtered io.Writer

	Classifier antibody.Classifier

	// StripFiltered writes filtered pairs with placeholders removed. By
	// default the filtered stream keeps the original sequences.
	StripFiltered bool

	// SpoolDir, when set, holds the temporary canonical copy of the input.
	// Otherwise the canonical form stays in memory.
	SpoolDir string

	// CollectPairs keeps a report row for every classified pair in
	// Result.Pairs. Otherwise pairs are dropped once written.
	CollectPairs bool

	Logger *log.Logger
}

// Result carries the counters and per-pair summaries of a run.
type Result struct {
	Normal      int
	Irregular   int
	Records     int
	Diagnostics []error
	Pairs       []report.Pair
}

// Total is the number of pairs that were classified.
func (r *Result) Total() int { return r.Normal + r.Irregular }

// Run normalizes in, pairs adjacent heavy/light records and routes each pair.
// Malformed groups are reported in Result.Diagnostics and skipped; only I/O
// failures are returned as errors.
func Run(cfg Config, in io.Reader) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	accepted := bufio.NewWriter(writerOrDiscard(cfg.Accepted))
	filtered := bufio.NewWriter(writerOrDiscard(cfg.Filtered))

	canonical, records, cleanup, err := spool(cfg.SpoolDir, in, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	logger.Debug("normalized input", "records", records)

	res := &Result{Records: records}
	lines := newLineReader(canonical)
	diagnose := func(err error) {
		res.Diagnostics = append(res.Diagnostics, err)
		logger.Warn(err.Error())
	}

	for {
		header, ok := lines.next()
		if !ok {
			break
		}
		if !strings.HasPrefix(header, ">") {
			continue
		}
		headerLine := lines.n
		first, err := antibody.ParseIdentifier(header)
		if err != nil {
			diagnose(&FormatError{Line: headerLine, Header: header, Err: err})
			continue
		}

		firstSeq, ok1 := lines.next()
		partnerHeader, ok2 := lines.next()
		partnerSeq, ok3 := lines.next()
		if !ok1 || !ok2 || !ok3 {
			diagnose(&FormatError{Line: headerLine, Header: header, Err: ErrIncompleteGroup})
			break
		}

		partner, err := antibody.ParseIdentifier(partnerHeader)
		if err != nil {
			diagnose(&FormatError{Line: headerLine + 2, Header: partnerHeader, Err: err})
			continue
		}
		if partner.Chain != first.Chain.Opposite() {
			diagnose(&FormatError{Line: headerLine + 2, Header: partnerHeader, Err: ErrSameChain})
			continue
		}
		if partner.Key != first.Key {
			diagnose(&PairingError{Line: headerLine, Key: first.Key, OtherKey: partner.Key})
			continue
		}

		light := chainRecord{id: first, seq: firstSeq}
		heavy := chainRecord{id: partner, seq: partnerSeq}
		if first.Chain == antibody.Heavy {
			light, heavy = heavy, light
		}

		pair := classify(cfg.Classifier, light, heavy)
		if cfg.CollectPairs {
			res.Pairs = append(res.Pairs, pair)
		}

		dst := filtered
		out := [2]fasta.Record{
			{Header: light.id.Raw, Sequence: pair.LightSequence},
			{Header: heavy.id.Raw, Sequence: pair.HeavySequence},
		}
		if pair.Accepted {
			dst = accepted
			res.Normal++
		} else {
			res.Irregular++
			if !cfg.StripFiltered {
				out[0].Sequence, out[1].Sequence = light.seq, heavy.seq
			}
		}
		if err := writePair(dst, out); err != nil {
			return res, err
		}
		logger.Debug("classified pair", "key", pair.Key, "verdict", pair.Verdict(),
			"heavy_rule", pair.HeavyRule, "loop", pair.Loop, "insertion", pair.InsertionLength)
	}
	if err := lines.err(); err != nil {
		return res, fmt.Errorf("read canonical records: %w", err)
	}
	return res, nil
}

type chainRecord struct {
	id  antibody.Identifier
	seq string
}

func classify(c antibody.Classifier, light, heavy chainRecord) report.Pair {
	lightSeq := antibody.StripPlaceholders(light.seq)
	heavySeq := antibody.StripPlaceholders(heavy.seq)
	lv := c.Light(lightSeq)
	hv := c.Heavy(heavySeq)
	return report.Pair{
		Key:      light.id.Key,
		Accepted: lv.Normal && hv.Normal,

		LightID:          light.id.Raw,
		LightSequence:    lightSeq,
		LightNormal:      lv.Normal,
		LightCysteines:   lv.CysteineCount,
		LightCysDistance: lv.CysDistance,

		HeavyID:          heavy.id.Raw,
		HeavySequence:    heavySeq,
		HeavyNormal:      hv.Normal,
		HeavyRule:        string(hv.Rule),
		HeavyCysteines:   hv.CysteineCount,
		HeavyCysDistance: hv.CysDistance,

		Loop:            hv.Loop,
		LoopFlanked:     hv.LoopWithFlanks(heavySeq),
		InsertionLength: hv.InsertionLength,
		Insertion:       hv.Insertion,

		Placeholders: len(light.seq) - len(lightSeq) + len(heavy.seq) - len(heavySeq),
	}
}

// writePair writes light then heavy and flushes, so an interrupted run keeps
// every pair written before it.
func writePair(w *bufio.Writer, recs [2]fasta.Record) error {
	for _, rec := range recs {
		if _, err := w.WriteString(rec.String()); err != nil {
			return fmt.Errorf("write pair: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush pair: %w", err)
	}
	return nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// spool writes the canonical form of in either to a temp file under dir or to
// memory, and returns a reader over it.
func spool(dir string, in io.Reader, logger *log.Logger) (io.Reader, int, func(), error) {
	if dir == "" {
		var buf bytes.Buffer
		n, err := fasta.Normalize(in, &buf)
		if err != nil {
			return nil, 0, nil, err
		}
		return &buf, n, func() {}, nil
	}

	tmp, err := os.CreateTemp(dir, "correctformat-*.fasta")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create spool file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		logger.Debug("removed spool file", "path", tmp.Name())
	}
	logger.Debug("spool file created", "path", tmp.Name())
	n, err := fasta.Normalize(in, tmp)
	if err != nil {
		cleanup()
		return nil, 0, nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("rewind spool file: %w", err)
	}
	return tmp, n, cleanup, nil
}

// lineReader yields canonical lines and tracks the 1-based line number of the
// last line returned.
type lineReader struct {
	sc *bufio.Scanner
	n  int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return &lineReader{sc: sc}
}

func (l *lineReader) next() (string, bool) {
	if !l.sc.Scan() {
		return "", false
	}
	l.n++
	return l.sc.Text(), true
}

func (l *lineReader) err() error { return l.sc.Err() }
