package format

import "strconv"

// Money renders an amount the way flow messages show it: $1234.50.
func Money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
