package checklist

import (
	"fmt"
	"math"
	"sort"
)

// PassThreshold is the percentage at or above which an auto-calculated
// indicator is answered Yes.
const PassThreshold = 50.0

// Built-in calculator kinds.
const (
	CalcPhysicalAccomplishment = "physical_accomplishment"
	CalcFundUtilization        = "fund_utilization"
)

// AutoCalculator derives a Yes/No assessment answer from a numeric pair.
type AutoCalculator struct {
	Kind           string `json:"type"`
	NumeratorKey   string `json:"numerator_field"`
	DenominatorKey string `json:"denominator_field"`
	// TargetItemID is the assessment field whose Yes/No is forced.
	TargetItemID string `json:"target_item"`
}

// PhysicalAccomplishment builds the accomplished/reflected calculator.
func PhysicalAccomplishment(targetItemID string) AutoCalculator {
	return AutoCalculator{
		Kind:           CalcPhysicalAccomplishment,
		NumeratorKey:   "physical_accomplished",
		DenominatorKey: "physical_reflected",
		TargetItemID:   targetItemID,
	}
}

// FundUtilization builds the utilized/allocated calculator.
func FundUtilization(targetItemID string) AutoCalculator {
	return AutoCalculator{
		Kind:           CalcFundUtilization,
		NumeratorKey:   "fund_utilized",
		DenominatorKey: "fund_allocated",
		TargetItemID:   targetItemID,
	}
}

// ParseAutoCalculator reads a calculator definition out of a calculation
// schema's "auto_calculator" entry. It accepts either a bare kind string or an
// object with explicit field keys. A definition without "target_item" targets
// the leaf's only assessment_field item; it is rejected when items hold none
// or more than one, since nothing could be forced.
func ParseAutoCalculator(raw any, items []Item) (AutoCalculator, bool) {
	var (
		calc AutoCalculator
		ok   bool
	)
	switch t := raw.(type) {
	case string:
		calc, ok = defaultCalculator(t, "")
	case map[string]any:
		kind, _ := t["type"].(string)
		target, _ := t["target_item"].(string)
		calc, ok = defaultCalculator(kind, target)
		if v, set := t["numerator_field"].(string); set && v != "" {
			calc.NumeratorKey = v
		}
		if v, set := t["denominator_field"].(string); set && v != "" {
			calc.DenominatorKey = v
		}
	}
	if !ok {
		return AutoCalculator{}, false
	}
	if calc.TargetItemID == "" {
		calc.TargetItemID = soleAssessmentField(items)
	}
	return calc, calc.TargetItemID != ""
}

// ParseAutoCalculators reads either a single definition or a list of them.
// It returns the calculators that parsed and whether every entry did.
func ParseAutoCalculators(raw any, items []Item) ([]AutoCalculator, bool) {
	if raw == nil {
		return nil, true
	}
	defs, isList := raw.([]any)
	if !isList {
		defs = []any{raw}
	}
	out := make([]AutoCalculator, 0, len(defs))
	valid := true
	for _, d := range defs {
		calc, ok := ParseAutoCalculator(d, items)
		if !ok {
			valid = false
			continue
		}
		out = append(out, calc)
	}
	return out, valid
}

func soleAssessmentField(items []Item) string {
	id := ""
	for _, it := range items {
		if it.ItemType != ItemAssessmentField {
			continue
		}
		if id != "" {
			return ""
		}
		id = it.ItemID
	}
	return id
}

func defaultCalculator(kind, target string) (AutoCalculator, bool) {
	switch kind {
	case CalcPhysicalAccomplishment:
		return PhysicalAccomplishment(target), true
	case CalcFundUtilization:
		return FundUtilization(target), true
	}
	return AutoCalculator{}, false
}

// Percentage computes numerator/denominator*100, or 0 when the denominator is
// not positive. The result is rounded to two decimals.
func Percentage(numerator, denominator float64) float64 {
	return math.Round(ratio(numerator, denominator)*100) / 100
}

func ratio(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator * 100
}

// FormatPercentage renders p the way the assessment form displays it.
func FormatPercentage(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

// Computation is the outcome of running one calculator.
type Computation struct {
	Kind       string  `json:"type"`
	Percentage float64 `json:"percentage"`
	Display    string  `json:"display"`
	// Applied is false when the numeric pair is absent or the denominator is
	// zero; nothing is forced in that case.
	Applied bool `json:"applied"`
	Yes     bool `json:"yes"`
}

// Compute evaluates the calculator against values without modifying them.
func (c AutoCalculator) Compute(values Values) Computation {
	out := Computation{Kind: c.Kind}
	num, okNum := values.Number(c.NumeratorKey)
	den, okDen := values.Number(c.DenominatorKey)
	if !okNum || !okDen || den <= 0 {
		out.Display = FormatPercentage(0)
		return out
	}
	out.Percentage = Percentage(num, den)
	out.Display = FormatPercentage(out.Percentage)
	out.Applied = true
	// the threshold is checked before rounding: 49.996 stays No
	out.Yes = ratio(num, den) >= PassThreshold
	return out
}

// LockedFields is the set of value keys owned by auto-calculation.
type LockedFields map[string]struct{}

// Has reports whether key is locked.
func (l LockedFields) Has(key string) bool {
	_, ok := l[key]
	return ok
}

// Keys returns the locked keys in sorted order.
func (l LockedFields) Keys() []string {
	out := make([]string, 0, len(l))
	for k := range l {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ApplyAutoCalculations runs every calculator against values and returns a
// copy with the forced Yes/No answers written in, the set of keys that are
// now read-only, and the per-calculator results. Forced answers always win
// over whatever the caller supplied for those keys.
func ApplyAutoCalculations(values Values, calcs []AutoCalculator) (Values, LockedFields, []Computation) {
	out := values.Clone()
	locked := LockedFields{}
	results := make([]Computation, 0, len(calcs))
	for _, c := range calcs {
		comp := c.Compute(values)
		results = append(results, comp)
		if !comp.Applied || c.TargetItemID == "" {
			continue
		}
		yesKey, noKey := YesKey(c.TargetItemID), NoKey(c.TargetItemID)
		out[yesKey] = comp.Yes
		out[noKey] = !comp.Yes
		locked[yesKey] = struct{}{}
		locked[noKey] = struct{}{}
	}
	return out, locked, results
}

// MergeInput applies user-supplied changes onto current, dropping writes to
// locked keys. It returns the merged values and the keys that were rejected.
func MergeInput(current, input Values, locked LockedFields) (Values, []string) {
	out := current.Clone()
	var rejected []string
	for k, v := range input {
		if locked.Has(k) {
			rejected = append(rejected, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(rejected)
	return out, rejected
}
