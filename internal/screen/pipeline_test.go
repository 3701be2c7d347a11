package screen

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/antibody"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/fasta"
)

const (
	light8E10 = "EIVLTQSPGTLSLSPGERATLSCRASQSVSSSYLAWYQQKPGQAPRLLIYGASSRATGIPDRFSGSGSGTDFTLTISRLEPADFAVYYCQQYGSSPSITFGQGTRLEIKR"
	heavy8E10 = "QVQLVQSGAEVKKPGASVKVSCKASGYTFTSYAMHWVRQAPGQRLEWMGWINAGNGNTKYSQKFQGRVTITRDTSASTAYMELSSLRSEDTAVYYCARAMILRIGHGQPQGYWGEGTLVT"
)

// Cysteines 40 apart with a loop four residues too long.
var irregularHeavy = "AAC" + strings.Repeat("G", 39) + "CARDYGSSYFDAAAAWGQG"

// wrap splits seq into lines of width n.
func wrap(seq string, n int) string {
	var b strings.Builder
	for len(seq) > n {
		b.WriteString(seq[:n])
		b.WriteByte('\n')
		seq = seq[n:]
	}
	b.WriteString(seq)
	b.WriteByte('\n')
	return b.String()
}

func run(t *testing.T, cfg Config, input string) (*Result, string, string) {
	t.Helper()
	var accepted, filtered bytes.Buffer
	cfg.Accepted = &accepted
	cfg.Filtered = &filtered
	cfg.CollectPairs = true
	res, err := Run(cfg, strings.NewReader(input))
	require.NoError(t, err)
	return res, accepted.String(), filtered.String()
}

func TestRunRoutesPairsInEitherOrder(t *testing.T) {
	input := "" +
		">8E10_L|8E10 - (HUMAN) human\n" + wrap(light8E10, 36) +
		">8E10_H|8E10 - (HUMAN) human\n" + wrap(heavy8E10, 36) +
		">bad_H|bad\n" + wrap(irregularHeavy, 20) +
		">bad_L|bad\n" + light8E10 + "\n"

	res, accepted, filtered := run(t, Config{}, input)
	require.Equal(t, 1, res.Normal)
	require.Equal(t, 1, res.Irregular)
	require.Equal(t, 2, res.Total())
	require.Equal(t, 4, res.Records)
	require.Empty(t, res.Diagnostics)

	require.Equal(t, ""+
		">8E10_L|8E10 - (HUMAN) human\n"+light8E10+"\n"+
		">8E10_H|8E10 - (HUMAN) human\n"+heavy8E10+"\n", accepted)
	// Light chain is written first even though the heavy chain came first.
	require.Equal(t, ""+
		">bad_L|bad\n"+light8E10+"\n"+
		">bad_H|bad\n"+irregularHeavy+"\n", filtered)

	require.Len(t, res.Pairs, 2)
	require.Equal(t, "8E10 - (HUMAN) human", res.Pairs[0].Key)
	require.True(t, res.Pairs[0].Accepted)
	require.Equal(t, "AMILRIGHGQPQGY", res.Pairs[0].Loop)
	require.Equal(t, 6, res.Pairs[0].InsertionLength)
	require.Equal(t, "bad", res.Pairs[1].Key)
	require.True(t, res.Pairs[1].LightNormal)
	require.False(t, res.Pairs[1].HeavyNormal)
	require.Equal(t, string(antibody.RuleIrregular), res.Pairs[1].HeavyRule)
}

func TestRunMismatchedKeys(t *testing.T) {
	input := ">a_L|one\n" + light8E10 + "\n>a_H|two\n" + heavy8E10 + "\n"
	res, accepted, filtered := run(t, Config{}, input)

	require.Zero(t, res.Normal)
	require.Zero(t, res.Irregular)
	require.Empty(t, accepted)
	require.Empty(t, filtered)
	require.Len(t, res.Diagnostics, 1)

	var perr *PairingError
	require.True(t, errors.As(res.Diagnostics[0], &perr))
	require.Equal(t, "one", perr.Key)
	require.Equal(t, "two", perr.OtherKey)
	require.ErrorIs(t, res.Diagnostics[0], ErrGroupMismatch)
}

func TestRunMismatchSkipsGroupAndContinues(t *testing.T) {
	input := "" +
		">a_L|one\n" + light8E10 + "\n>a_H|two\n" + heavy8E10 + "\n" +
		">b_H|three\n" + heavy8E10 + "\n>b_L|three\n" + light8E10 + "\n"
	res, accepted, _ := run(t, Config{}, input)
	require.Equal(t, 1, res.Normal)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, ">b_L|three\n"+light8E10+"\n>b_H|three\n"+heavy8E10+"\n", accepted)
}

func TestRunFormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
		line  int
	}{
		{"missing marker", ">nomarker\nAAAA\n", antibody.ErrMissingMarker, 1},
		{"partner missing marker", ">a_L|k\nCC\n>a|k\nCC\n", antibody.ErrMissingMarker, 3},
		{"same chain", ">a_L|k\nCC\n>b_L|k\nCC\n", ErrSameChain, 3},
		{"dangling record", ">a_L|k\n" + light8E10 + "\n", ErrIncompleteGroup, 1},
		{"dangling partner", ">a_L|k\nCC\n>a_H|k\n", ErrIncompleteGroup, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, accepted, filtered := run(t, Config{}, tt.input)
			require.Zero(t, res.Total())
			require.Empty(t, accepted)
			require.Empty(t, filtered)
			require.Len(t, res.Diagnostics, 1)
			require.ErrorIs(t, res.Diagnostics[0], tt.want)

			var ferr *FormatError
			require.True(t, errors.As(res.Diagnostics[0], &ferr))
			require.Equal(t, tt.line, ferr.Line)
		})
	}
}

func TestRunStripsPlaceholders(t *testing.T) {
	lightX := "XX" + light8E10[:40] + "X" + light8E10[40:]
	heavyX := heavy8E10[:50] + "XXX" + heavy8E10[50:] + "X"
	input := ">p_L|p\n" + lightX + "\n>p_H|p\n" + heavyX + "\n" +
		">q_L|q\nXC" + strings.Repeat("A", 20) + "CX\n>q_H|q\nXXQVQ\n"

	res, accepted, filtered := run(t, Config{}, input)
	require.Equal(t, 1, res.Normal)
	require.Equal(t, 1, res.Irregular)
	require.NotContains(t, accepted, "X")
	require.Contains(t, accepted, light8E10)
	require.Contains(t, accepted, heavy8E10)
	require.Equal(t, 7, res.Pairs[0].Placeholders)
	// Filtered pairs keep their original sequences.
	require.Equal(t, ">q_L|q\nXC"+strings.Repeat("A", 20)+"CX\n>q_H|q\nXXQVQ\n", filtered)
	require.Equal(t, "C"+strings.Repeat("A", 20)+"C", res.Pairs[1].LightSequence)

	_, _, filtered = run(t, Config{StripFiltered: true}, input)
	require.Equal(t, ">q_L|q\nC"+strings.Repeat("A", 20)+"C\n>q_H|q\nQVQ\n", filtered)
}

func TestRunCollectsPairsOnRequest(t *testing.T) {
	input := ">a_L|k\n" + light8E10 + "\n>a_H|k\n" + heavy8E10 + "\n"
	var accepted strings.Builder
	res, err := Run(Config{Accepted: &accepted}, strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, res.Normal)
	require.Nil(t, res.Pairs)
	require.Contains(t, accepted.String(), heavy8E10)

	res, err = Run(Config{CollectPairs: true}, strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
}

func TestRunAcceptedRoundTrip(t *testing.T) {
	input := "" +
		">8E10_H|8E10\n" + wrap(heavy8E10, 60) +
		">8E10_L|8E10\n" + wrap("X"+light8E10, 60) +
		">bad_L|bad\n" + light8E10 + "\n>bad_H|bad\n" + irregularHeavy + "\n"
	first, accepted, _ := run(t, Config{}, input)
	require.Equal(t, 1, first.Normal)

	again, reaccepted, refiltered := run(t, Config{}, accepted)
	require.Equal(t, 1, again.Normal)
	require.Zero(t, again.Irregular)
	require.Equal(t, accepted, reaccepted)
	require.Empty(t, refiltered)

	recs, err := fasta.ParseFasta(strings.NewReader(accepted))
	require.NoError(t, err)
	for _, rec := range recs {
		id, err := antibody.ParseIdentifier(rec.Header)
		require.NoError(t, err)
		if id.Chain == antibody.Heavy {
			require.True(t, antibody.ClassifyHeavyChain(rec.Sequence).Normal)
		} else {
			require.True(t, antibody.ClassifyLightChain(rec.Sequence).Normal)
		}
	}
}

func TestRunStrictInsertion(t *testing.T) {
	frame := "QVQLVESGGGLVQPGGSLRLSCAASGFTFSSYAMSWVRQAPGKGLEWVSAISGSGGSTYYADSVKGRFTISRDNSKNTLYLQMNSLRAEDTAVYYCAR"
	heavy := frame + "DYGSSYFD" + strings.Repeat("A", 10) + "WGQG"
	input := ">x_L|x\n" + light8E10 + "\n>x_H|x\n" + heavy + "\n"

	res, _, _ := run(t, Config{}, input)
	require.Equal(t, 1, res.Normal)

	res, _, _ = run(t, Config{Classifier: antibody.Classifier{StrictInsertion: true}}, input)
	require.Equal(t, 1, res.Irregular)
	require.Equal(t, string(antibody.RuleLongInsertion), res.Pairs[0].HeavyRule)
}

func TestRunSpoolsToTempDir(t *testing.T) {
	dir := t.TempDir()
	input := ">a_L|k\n" + light8E10 + "\n>a_H|k\n" + heavy8E10 + "\n"
	res, accepted, _ := run(t, Config{SpoolDir: dir}, input)
	require.Equal(t, 1, res.Normal)
	require.NotEmpty(t, accepted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "spool file should be removed after the run")
}

func TestRunEmptyInput(t *testing.T) {
	res, accepted, filtered := run(t, Config{}, "not fasta at all\n")
	require.Zero(t, res.Total())
	require.Zero(t, res.Records)
	require.Empty(t, res.Diagnostics)
	require.Empty(t, accepted)
	require.Empty(t, filtered)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunWriteFailure(t *testing.T) {
	input := ">a_L|k\n" + light8E10 + "\n>a_H|k\n" + heavy8E10 + "\n"
	_, err := Run(Config{Accepted: failingWriter{}}, strings.NewReader(input))
	require.ErrorContains(t, err, "disk full")
}
