package checklist

import "strings"

// internalOrMarker is the label convention for option groups where a single
// filled item satisfies the whole group.
const internalOrMarker = "option 3"

// Result is the full outcome of one evaluation.
type Result struct {
	Verdict Verdict `json:"verdict"`
	// Grouped is true when option-group evaluation was used.
	Grouped       bool     `json:"grouped"`
	CheckedCount  int      `json:"checkedCount"`
	TotalRequired int      `json:"totalRequired"`
	UnmetRequired []string `json:"unmetRequired"`
	// SatisfiedGroups lists the option groups that were complete, in first-seen order.
	SatisfiedGroups []string `json:"satisfiedGroups,omitempty"`
}

// CalculateAutomaticStatus returns the suggested verdict for an indicator.
func CalculateAutomaticStatus(items []Item, values Values, rule ValidationRule) Verdict {
	return Evaluate(items, values, rule).Verdict
}

// Evaluate computes the verdict together with the bookkeeping the assessment
// UI needs to highlight unmet items. It never panics; an indicator without
// evaluable items yields an undetermined verdict.
func Evaluate(items []Item, values Values, rule ValidationRule) Result {
	evaluable := make([]Item, 0, len(items))
	grouped := false
	for _, it := range items {
		if !it.Evaluable() {
			continue
		}
		evaluable = append(evaluable, it)
		if it.OptionGroup != "" {
			grouped = true
		}
	}
	res := Result{UnmetRequired: []string{}}
	if len(evaluable) == 0 {
		return res
	}
	if values == nil {
		values = Values{}
	}
	if grouped {
		return evaluateGrouped(evaluable, values)
	}
	return evaluateFlat(evaluable, values, rule)
}

func evaluateFlat(items []Item, values Values, rule ValidationRule) Result {
	res := Result{UnmetRequired: []string{}}
	required := 0
	for _, it := range items {
		filled := Filled(it, values)
		if filled {
			res.CheckedCount++
		}
		if it.Required {
			required++
		}
		if !filled && (it.Required || rule == RuleAllItemsRequired) {
			res.UnmetRequired = append(res.UnmetRequired, it.ItemID)
		}
	}
	res.TotalRequired = required
	if rule == RuleAllItemsRequired {
		res.TotalRequired = len(items)
	}

	switch rule {
	case RuleAllItemsRequired:
		res.Verdict = passOrFail(res.CheckedCount >= res.TotalRequired)
	case RuleAnyItemRequired, RuleOrLogicAtLeastOne:
		res.Verdict = passOrFail(res.CheckedCount > 0)
	default:
		if res.CheckedCount > 0 {
			res.Verdict = VerdictPass
		}
	}
	return res
}

type optionGroup struct {
	name     string
	logic    GroupLogic
	explicit bool
	items    []Item
}

func evaluateGrouped(items []Item, values Values) Result {
	res := Result{Grouped: true, UnmetRequired: []string{}}

	var groups []*optionGroup
	byName := make(map[string]*optionGroup)
	var ungrouped []Item
	for _, it := range items {
		if it.OptionGroup == "" {
			ungrouped = append(ungrouped, it)
			continue
		}
		g, ok := byName[it.OptionGroup]
		if !ok {
			g = &optionGroup{name: it.OptionGroup}
			byName[it.OptionGroup] = g
			groups = append(groups, g)
		}
		// the first item that sets group_logic decides for the whole group
		if !g.explicit {
			g.logic = groupLogic(it.OptionGroup, it.GroupLogic)
			g.explicit = isExplicitLogic(it.GroupLogic)
		}
		g.items = append(g.items, it)
	}

	baselineMet := true
	for _, it := range ungrouped {
		filled := Filled(it, values)
		if filled {
			res.CheckedCount++
		}
		if !it.Required {
			continue
		}
		res.TotalRequired++
		if !filled {
			baselineMet = false
			res.UnmetRequired = append(res.UnmetRequired, it.ItemID)
		}
	}

	var pending []string
	for _, g := range groups {
		filledCount := 0
		var unfilled []string
		for _, it := range g.items {
			if Filled(it, values) {
				filledCount++
			} else {
				unfilled = append(unfilled, it.ItemID)
			}
		}
		res.CheckedCount += filledCount
		complete := filledCount == len(g.items)
		if g.logic == GroupLogicOr {
			complete = filledCount > 0
		}
		if complete {
			res.SatisfiedGroups = append(res.SatisfiedGroups, g.name)
		} else {
			pending = append(pending, unfilled...)
		}
	}
	if len(groups) > 0 {
		res.TotalRequired++
	}

	if !baselineMet {
		res.Verdict = VerdictFail
		return res
	}
	if len(groups) == 0 || len(res.SatisfiedGroups) > 0 {
		res.Verdict = VerdictPass
		return res
	}
	res.UnmetRequired = append(res.UnmetRequired, pending...)
	res.Verdict = VerdictFail
	return res
}

// groupLogic resolves how a group combines its items. An explicit setting
// wins; otherwise groups labelled "Option 3" are internal-OR and every other
// group requires all of its items.
func groupLogic(name string, explicit GroupLogic) GroupLogic {
	switch GroupLogic(strings.ToUpper(string(explicit))) {
	case GroupLogicOr:
		return GroupLogicOr
	case GroupLogicAnd:
		return GroupLogicAnd
	}
	if IsInternalOrGroup(name) {
		return GroupLogicOr
	}
	return GroupLogicAnd
}

func isExplicitLogic(l GroupLogic) bool {
	switch GroupLogic(strings.ToUpper(string(l))) {
	case GroupLogicOr, GroupLogicAnd:
		return true
	}
	return false
}

// IsInternalOrGroup reports whether a group label follows the "Option 3"
// convention where any single item completes the group.
// TODO: replace the label match with an explicit group_logic on every seeded
// indicator once the validators confirm the intended semantics.
func IsInternalOrGroup(label string) bool {
	return strings.Contains(strings.ToLower(label), internalOrMarker)
}

func passOrFail(ok bool) Verdict {
	if ok {
		return VerdictPass
	}
	return VerdictFail
}
