package checklist

import (
	"fmt"
	"strconv"
	"strings"
)

// Values is the flat map of per-item inputs supplied by the assessment form.
// Assessment fields may be given either as "<id>_yes"/"<id>_no" keys or as a
// nested {"yes": bool, "no": bool} object under the item id.
type Values map[string]any

const (
	yesSuffix = "_yes"
	noSuffix  = "_no"
)

// YesKey returns the flat key holding the "yes" response of an assessment field.
func YesKey(itemID string) string { return itemID + yesSuffix }

// NoKey returns the flat key holding the "no" response of an assessment field.
func NoKey(itemID string) string { return itemID + noSuffix }

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Filled reports whether item counts as filled under values.
func Filled(item Item, values Values) bool {
	switch item.ItemType {
	case ItemDocumentCount, ItemCalculationField:
		raw, ok := values[item.ItemID]
		if !ok || raw == nil {
			return false
		}
		s := strings.TrimSpace(stringify(raw))
		return s != "" && s != "false"
	case ItemAssessmentField:
		return assessmentYes(item.ItemID, values)
	default:
		b, ok := values[item.ItemID].(bool)
		return ok && b
	}
}

func assessmentYes(itemID string, values Values) bool {
	if b, ok := values[YesKey(itemID)].(bool); ok {
		return b
	}
	switch nested := values[itemID].(type) {
	case map[string]any:
		b, ok := nested["yes"].(bool)
		return ok && b
	case map[string]bool:
		return nested["yes"]
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

// Number extracts a numeric value stored under key. Strings are parsed after
// trimming; anything unparseable reports ok=false.
func (v Values) Number(key string) (float64, bool) {
	switch t := v[key].(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
