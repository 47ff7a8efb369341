package files

import "strconv"

// PrettySize renders a byte count with decimal units, truncating toward zero.
func PrettySize(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	for _, unit := range units {
		if n < 1000 {
			return strconv.FormatInt(n, 10) + unit
		}
		n /= 1000
	}
	return strconv.FormatInt(n, 10) + "TB"
}
