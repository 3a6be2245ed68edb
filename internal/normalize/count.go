package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParseCount parses abbreviated counts such as "1.2K", "3,4 M", "1 234" or
// "25,897,412". A single separator followed by exactly three digits is a
// thousands separator unless a K/M/B suffix is present.
func ParseCount(s string) (int64, bool) {
	t := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	if t == "" {
		return 0, false
	}

	mult := 1.0
	switch t[len(t)-1] {
	case 'k', 'K':
		mult = 1e3
	case 'm', 'M':
		mult = 1e6
	case 'b', 'B':
		mult = 1e9
	}
	if mult != 1 {
		t = t[:len(t)-1]
	}
	if t == "" {
		return 0, false
	}

	intPart, frac := t, ""
	if sep := strings.LastIndexAny(t, ".,"); sep >= 0 && (mult != 1 || len(t)-sep-1 != 3) {
		intPart, frac = t[:sep], t[sep+1:]
	}
	intPart = strings.NewReplacer(",", "", ".", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(frac) {
		return 0, false
	}

	value, err := strconv.ParseFloat(intPart+"."+frac+"0", 64)
	if err != nil {
		return 0, false
	}
	n := math.Round(value * mult)
	if n >= math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
