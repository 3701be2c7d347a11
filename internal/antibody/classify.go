package antibody

import "strings"

const (
	// CanonicalLoopLength is the length of a CDRH3 loop without insertions.
	CanonicalLoopLength = 8

	// MaxInsertion is the longest insertion tolerated when the insertion
	// check is enforced.
	MaxInsertion = 9

	MinCysDistance = 70
	MaxCysDistance = 80
)

// Rule identifies which heavy-chain rule decided a verdict.
type Rule string

const (
	RuleCysteineCount   Rule = "cysteine-count"
	RuleLongInsertion   Rule = "long-insertion"
	RuleEmptyLoop       Rule = "empty-loop"
	RuleNoInsertion     Rule = "no-insertion"
	RuleNoTryptophan    Rule = "no-tryptophan"
	RuleCysteineSpacing Rule = "cysteine-spacing"
	RuleIrregular       Rule = "irregular"
	RuleCysteinePair    Rule = "cysteine-pair"
)

// cysteines holds the bracketing scan shared by both chain classifiers.
// Positions are 1-based; zero means not found.
type cysteines struct {
	count  int
	first  int
	second int
}

func (c cysteines) distance() int { return c.second - c.first }

func scanCysteines(seq string) cysteines {
	var c cysteines
	for i := 0; i < len(seq); i++ {
		if seq[i] != 'C' {
			continue
		}
		c.count++
		switch c.count {
		case 1:
			c.first = i + 1
		case 2:
			c.second = i + 1
		}
	}
	return c
}

// HeavyVerdict is the outcome of classifying a heavy chain.
type HeavyVerdict struct {
	Normal bool
	Rule   Rule

	CysteineCount   int
	FirstCysteine   int
	SecondCysteine  int
	CysDistance     int
	TryptophanCount int
	// ClosingTryptophan is the 1-based position of the last W at or after
	// the second cysteine.
	ClosingTryptophan int

	Loop            string
	InsertionLength int
	// Insertion is the residue window immediately preceding the closing
	// tryptophan motif that accounts for InsertionLength.
	Insertion string
}

// LightVerdict is the outcome of classifying a light chain.
type LightVerdict struct {
	Normal         bool
	Rule           Rule
	CysteineCount  int
	FirstCysteine  int
	SecondCysteine int
	CysDistance    int
}

// Classifier holds classification options. The zero value reproduces the
// historical screening behaviour.
type Classifier struct {
	// StrictInsertion rejects heavy chains whose insertion window is longer
	// than MaxInsertion. Historically the check compared against an empty
	// window and never fired.
	StrictInsertion bool
}

var defaultClassifier Classifier

// ClassifyHeavyChain classifies seq with the default Classifier.
func ClassifyHeavyChain(seq string) HeavyVerdict {
	return defaultClassifier.Heavy(seq)
}

// ClassifyLightChain classifies seq with the default Classifier.
func ClassifyLightChain(seq string) LightVerdict {
	return defaultClassifier.Light(seq)
}

// Heavy locates the CDRH3 loop between the second cysteine and the last
// tryptophan and judges whether the chain looks normal.
func (c Classifier) Heavy(seq string) HeavyVerdict {
	cys := scanCysteines(seq)
	v := HeavyVerdict{
		CysteineCount:  cys.count,
		FirstCysteine:  cys.first,
		SecondCysteine: cys.second,
		CysDistance:    cys.distance(),
	}

	from := cys.second - 1
	if from < 0 {
		from = 0
	}
	for i := from; i < len(seq); i++ {
		if seq[i] == 'W' {
			v.TryptophanCount++
			v.ClosingTryptophan = i + 1
		}
	}

	if v.TryptophanCount > 0 {
		v.Loop = window(seq, cys.second+2, v.ClosingTryptophan-1)
	}
	v.InsertionLength = len(v.Loop) - CanonicalLoopLength
	if v.InsertionLength != 0 {
		end := v.ClosingTryptophan - 3
		v.Insertion = window(seq, end-v.InsertionLength, end)
	}

	// The historical check measured an insertion that had not been
	// extracted yet, so it always saw zero.
	insertion := 0
	if c.StrictInsertion {
		insertion = len(v.Insertion)
	}

	switch {
	case cys.count != 2:
		v.Rule = RuleCysteineCount
	case insertion > MaxInsertion:
		v.Rule = RuleLongInsertion
	case len(v.Loop) == 0:
		v.Rule = RuleEmptyLoop
	case v.InsertionLength <= 0:
		v.Normal, v.Rule = true, RuleNoInsertion
	case v.TryptophanCount == 0:
		v.Rule = RuleNoTryptophan
	case v.CysDistance >= MinCysDistance && v.CysDistance <= MaxCysDistance:
		v.Normal, v.Rule = true, RuleCysteineSpacing
	default:
		v.Rule = RuleIrregular
	}
	return v
}

// Light accepts a chain bracketed by exactly two cysteines.
func (c Classifier) Light(seq string) LightVerdict {
	cys := scanCysteines(seq)
	v := LightVerdict{
		CysteineCount:  cys.count,
		FirstCysteine:  cys.first,
		SecondCysteine: cys.second,
		CysDistance:    cys.distance(),
		Rule:           RuleCysteinePair,
	}
	if cys.count != 2 {
		v.Rule = RuleCysteineCount
		return v
	}
	v.Normal = v.CysDistance != 0
	return v
}

// window returns seq[start:end] (0-based), or "" when the window is empty or
// falls outside seq.
func window(seq string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(seq) {
		end = len(seq)
	}
	if start >= end {
		return ""
	}
	return seq[start:end]
}

// LoopWithFlanks renders the loop with the flanking cysteine and tryptophan
// motifs lower-cased for display, e.g. "car" + loop + "wg".
func (v HeavyVerdict) LoopWithFlanks(seq string) string {
	if v.Loop == "" {
		return ""
	}
	head := window(seq, v.SecondCysteine-1, v.SecondCysteine+2)
	tail := window(seq, v.ClosingTryptophan-1, v.ClosingTryptophan+1)
	return strings.ToLower(head) + v.Loop + strings.ToLower(tail)
}
