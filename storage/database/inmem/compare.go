package inmemdb

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// compareValues compares two column values of the same type, the way postgres would order them.
// NULLs sort after every other value in ascending order.
func compareValues(a, b interface{}) int {
	switch va := a.(type) {
	case string:
		return strings.Compare(va, b.(string))
	case int:
		return compareInts(int64(va), int64(b.(int)))
	case int64:
		return compareInts(va, b.(int64))
	case bool:
		vb := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		default:
			return 1
		}
	case time.Time:
		vb := b.(time.Time)
		switch {
		case va.Equal(vb):
			return 0
		case va.Before(vb):
			return -1
		default:
			return 1
		}
	case null.Time:
		vb := b.(null.Time)
		if c, done := compareNulls(va.Valid, vb.Valid); done {
			return c
		}
		return compareValues(va.Time, vb.Time)
	case null.String:
		vb := b.(null.String)
		if c, done := compareNulls(va.Valid, vb.Valid); done {
			return c
		}
		return strings.Compare(va.String, vb.String)
	}
	return 0
}

func compareInts(a, b int64) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}

func compareNulls(aValid, bValid bool) (int, bool) {
	switch {
	case aValid && bValid:
		return 0, false
	case !aValid && !bValid:
		return 0, true
	case !aValid:
		return 1, true
	default:
		return -1, true
	}
}
