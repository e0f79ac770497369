package value

import "strconv"

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
