package util

import "fmt"

// FormatDurationFromSecs renders a whole number of seconds as "1h23m45s"-style text,
// dropping leading zero components.
func FormatDurationFromSecs(totalSecs int64) string {
	if totalSecs < 0 {
		totalSecs = 0
	}
	h := totalSecs / 3600
	m := (totalSecs % 3600) / 60
	s := totalSecs % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatBytesReadable renders a byte count using binary (1024-based) units.
func FormatBytesReadable(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), units[exp])
}

// CalculateSizeReduction returns the percentage reduction from original to reduced.
func CalculateSizeReduction(original, reduced uint64) float64 {
	if original == 0 {
		return 0
	}
	return (1 - float64(reduced)/float64(original)) * 100
}
