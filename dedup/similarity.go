package dedup

import (
	"fmt"
	"strings"

	"github.com/xrash/smetrics"
)

// Metric names a text similarity function.
type Metric string

const (
	// MetricTokenSet is the Sørensen–Dice coefficient over word sets.
	MetricTokenSet Metric = "token_set"
	// MetricLevenshtein is one minus the edit distance over the longer length.
	MetricLevenshtein Metric = "levenshtein"
	// MetricJaroWinkler is the Jaro-Winkler similarity.
	MetricJaroWinkler Metric = "jaro_winkler"
)

// Similarity scores two normalized strings in [0, 1]; 1 means identical.
type Similarity func(a, b string) float64

// ParseMetric maps a configuration name to a Metric. Empty selects token_set.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricTokenSet, nil
	case MetricTokenSet, MetricLevenshtein, MetricJaroWinkler:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Func returns the similarity function for m.
func (m Metric) Func() (Similarity, error) {
	switch m {
	case MetricTokenSet, "":
		return TokenSet, nil
	case MetricLevenshtein:
		return Levenshtein, nil
	case MetricJaroWinkler:
		return JaroWinkler, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, string(m))
}

// TokenSet returns 2|A∩B| / (|A|+|B|) over the distinct words of a and b.
func TokenSet(a, b string) float64 {
	if a == b {
		return 1
	}
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA)+len(setB) == 0 {
		return 0
	}
	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// Levenshtein returns 1 - distance/maxlen with unit edit costs.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	dist := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return 1 - float64(dist)/float64(longest)
}

// JaroWinkler uses the customary boost threshold 0.7 and prefix size 4.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
