package submission

import (
	"math"
	"strconv"
	"strings"
)

const (
	serialPrefix    = "HKX"
	serialMaxLength = 19
)

// MaskSerial applies the serial input mask: only digits and the letters
// H, K, X survive, the HKX prefix is forced and the value is cut at 19
// characters. Lowercase letters are dropped, not upper-cased.
func MaskSerial(value string) string {
	var b strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == 'H' || r == 'K' || r == 'X' {
			b.WriteRune(r)
		}
	}
	v := b.String()

	if v != "" && !strings.HasPrefix(v, serialPrefix) {
		switch {
		case strings.HasPrefix(v, "HK"):
			v = serialPrefix + v[2:]
		case strings.HasPrefix(v, "H"):
			v = serialPrefix + v[1:]
		default:
			v = serialPrefix + v
		}
	}

	if len(v) > serialMaxLength {
		v = v[:serialMaxLength]
	}
	return v
}

// MaskTime applies the 24-hour time input mask. Non-digits are dropped and
// from three digits on a colon is placed after the hours, keeping at most
// four digits.
func MaskTime(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	v := b.String()

	if len(v) >= 3 {
		v = v[:2] + ":" + v[2:min(len(v), 4)]
	}
	return v
}

// NormalizeTime turns HH:MM into HH:MM:00. Any other value is returned
// unchanged.
func NormalizeTime(value string) string {
	if len(value) == 5 {
		return value + ":00"
	}
	return value
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// HumanFileSize formats a byte count with 1024 based units, rounded to at
// most two decimals
func HumanFileSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}

	i := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)

	value := math.Round(float64(size)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
