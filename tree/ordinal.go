package tree

import "strconv"

// Ordinal renders n as "1st", "2nd", "3rd", "4th" and so on. The suffix is
// chosen by the last digit alone, so 11 becomes "11st".
func Ordinal(n int) string {
	s := strconv.Itoa(n)
	last := n % 10
	if last < 0 {
		last = -last
	}
	switch last {
	case 1:
		return s + "st"
	case 2:
		return s + "nd"
	case 3:
		return s + "rd"
	default:
		return s + "th"
	}
}
