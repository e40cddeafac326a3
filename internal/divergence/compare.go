// Package divergence implements the comparison primitive shared by the
// forward (merge-time) and backward (read-time) sanity checks.
package divergence

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/reconcile-cli/internal/registry"
)

// epsilon guards the percent_diff denominator against division by zero.
const epsilon = 1e-9

// Compare applies rule to a pair of values and returns a warning message, or
// "" when the values agree within tolerance. A non-nil error means the rule
// itself is malformed (unknown strategy, non-numeric value for percent_diff,
// etc.); callers skip the field's check in that case rather than failing the
// run.
func Compare(a, b any, rule registry.Rule) (string, error) {
	switch rule.Strategy {
	case registry.StrategyExact:
		return compareExact(a, b)
	case registry.StrategyPercentDiff:
		return comparePercentDiff(a, b, rule.Threshold)
	case registry.StrategySemantic:
		return compareSemantic(a, b, rule.Threshold)
	case registry.StrategySetSimilarity:
		return compareSetSimilarity(a, b, rule.Threshold)
	default:
		return "", eris.Errorf("divergence: unknown strategy %q", rule.Strategy)
	}
}

func compareExact(a, b any) (string, error) {
	na, nb := normalizeScalar(a), normalizeScalar(b)
	if na == nb {
		return "", nil
	}
	return fmt.Sprintf("values differ: %v vs %v", a, b), nil
}

func comparePercentDiff(a, b any, threshold float64) (string, error) {
	fa, ok := toFloat(a)
	if !ok {
		return "", eris.Errorf("divergence: percent_diff on non-numeric value %v", a)
	}
	fb, ok := toFloat(b)
	if !ok {
		return "", eris.Errorf("divergence: percent_diff on non-numeric value %v", b)
	}
	if threshold <= 0 {
		return "", eris.New("divergence: percent_diff requires a positive threshold")
	}
	diff := math.Abs(fa-fb) / math.Max(math.Abs(fb), epsilon)
	if diff > threshold {
		return fmt.Sprintf("values differ by %.1f%% (%v vs %v), tolerance %.1f%%",
			diff*100, a, b, threshold*100), nil
	}
	return "", nil
}

func compareSemantic(a, b any, threshold float64) (string, error) {
	sa, sb := foldText(a), foldText(b)
	if threshold <= 0 || threshold > 1 {
		return "", eris.New("divergence: semantic requires a threshold in (0,1]")
	}
	if sa == sb {
		return "", nil
	}
	score := levenshtein.Similarity(sa, sb, nil)
	if score < threshold {
		return fmt.Sprintf("text similarity %.2f below %.2f (%v vs %v)",
			score, threshold, a, b), nil
	}
	return "", nil
}

func compareSetSimilarity(a, b any, threshold float64) (string, error) {
	sa, ok := toSet(a)
	if !ok {
		return "", eris.Errorf("divergence: set_similarity on non-list value %v", a)
	}
	sb, ok := toSet(b)
	if !ok {
		return "", eris.Errorf("divergence: set_similarity on non-list value %v", b)
	}
	if threshold <= 0 || threshold > 1 {
		return "", eris.New("divergence: set_similarity requires a threshold in (0,1]")
	}
	score := jaccard(sa, sb)
	if score < threshold {
		return fmt.Sprintf("set overlap %.2f below %.2f (%s vs %s)",
			score, threshold, joinSet(sa), joinSet(sb)), nil
	}
	return "", nil
}

// jaccard computes |A∩B| / |A∪B|. Two empty sets are identical.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// normalizeScalar collapses equivalent encodings (int vs float64 from JSON,
// padded strings) before an exact comparison.
func normalizeScalar(v any) string {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var foldCaser = cases.Fold()

// foldText case-folds and collapses whitespace so the semantic strategy is
// insensitive to casing and formatting noise.
func foldText(v any) string {
	s := fmt.Sprintf("%v", v)
	return strings.Join(strings.Fields(foldCaser.String(s)), " ")
}

func toSet(v any) (map[string]bool, bool) {
	add := func(set map[string]bool, item any) {
		key := foldText(item)
		if key != "" {
			set[key] = true
		}
	}
	switch t := v.(type) {
	case []any:
		set := make(map[string]bool, len(t))
		for _, item := range t {
			add(set, item)
		}
		return set, true
	case []string:
		set := make(map[string]bool, len(t))
		for _, item := range t {
			add(set, item)
		}
		return set, true
	default:
		return nil, false
	}
}

func joinSet(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, ", ") + "]"
}
