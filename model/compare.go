package model

import (
	"fmt"
	"strings"
)

// Compare orders two decoded JSON values: numeric values compare
// numerically, strings compare case-insensitively, anything else falls back
// to a stringified comparison. Returns <0, 0, or >0.
func Compare(a, b interface{}) int {
	ak, bk := KindOf(a), KindOf(b)

	if (ak == KindInt || ak == KindFloat) && (bk == KindInt || bk == KindFloat) {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	if ak == KindString && bk == KindString {
		as, bs := a.(string), b.(string)
		return strings.Compare(strings.ToLower(as), strings.ToLower(bs))
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// Equal reports whether two decoded JSON values are equal under the same
// type-aware rules as Compare. Mismatched types (e.g. a string compared to
// a number) are never equal.
func Equal(a, b interface{}) bool {
	ak, bk := KindOf(a), KindOf(b)
	if (ak == KindInt || ak == KindFloat) && (bk == KindInt || bk == KindFloat) {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	if ak != bk {
		return false
	}
	return Compare(a, b) == 0
}
