package catalog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// thousandsPattern matches Chilean-style grouped integers such as 15.000 or
// 1.234.567, which would otherwise parse as decimals.
var thousandsPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// ParseAmount coerces a monetary cell into whole pesos. Anything that cannot be
// read as a finite number, and any negative value, becomes 0.
func ParseAmount(raw string) int64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	if thousandsPattern.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	} else if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		// decimal comma
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f > math.MaxInt64/2 {
		return 0
	}
	return int64(math.Trunc(f))
}
