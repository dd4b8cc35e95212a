package music

import "fmt"

// USBSizesGB are the stick capacities a playlist is matched against.
var USBSizesGB = []int{2, 4, 8, 16, 32, 64, 128, 256}

func unitBase(base1024 bool) float64 {
	if base1024 {
		return 1024
	}
	return 1000
}

// FormatSize renders a byte count with two decimals. base1024 selects binary units,
// otherwise the decimal units drive makers print on the box are used.
func FormatSize(sizeBytes int64, base1024 bool) string {
	base := unitBase(base1024)
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < base {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= base
	}
	return fmt.Sprintf("%.2f TB", size)
}

// BytesToMB converts bytes to megabytes.
func BytesToMB(sizeBytes int64, base1024 bool) float64 {
	base := unitBase(base1024)
	return float64(sizeBytes) / (base * base)
}

// BytesToGB converts bytes to gigabytes.
func BytesToGB(sizeBytes int64, base1024 bool) float64 {
	base := unitBase(base1024)
	return float64(sizeBytes) / (base * base * base)
}

// SuitableUSBSize returns the smallest stick in USBSizesGB that fits totalMB, or the largest one.
func SuitableUSBSize(totalMB float64, base1024 bool) int {
	totalGB := totalMB / unitBase(base1024)
	for _, size := range USBSizesGB {
		if totalGB <= float64(size) {
			return size
		}
	}
	return USBSizesGB[len(USBSizesGB)-1]
}

// CapacityReport summarizes a playlist size against the stick it fits on.
type CapacityReport struct {
	TotalBytes   int64   `json:"total_bytes"`
	TotalMB      float64 `json:"total_mb"`
	USBSizeGB    int     `json:"usb_size_gb"`
	USBSizeMB    float64 `json:"usb_size_mb"`
	AvailableMB  float64 `json:"available_mb"`
	UsagePercent float64 `json:"usage_percent"`
	Base1024     bool    `json:"base_1024"`
}

// NewCapacityReport computes the capacity report for a total size.
func NewCapacityReport(totalBytes int64, base1024 bool) CapacityReport {
	totalMB := BytesToMB(totalBytes, base1024)
	sizeGB := SuitableUSBSize(totalMB, base1024)
	sizeMB := float64(sizeGB) * unitBase(base1024)
	return CapacityReport{
		TotalBytes:   totalBytes,
		TotalMB:      totalMB,
		USBSizeGB:    sizeGB,
		USBSizeMB:    sizeMB,
		AvailableMB:  sizeMB - totalMB,
		UsagePercent: totalMB / sizeMB * 100,
		Base1024:     base1024,
	}
}

// FormatDuration renders seconds as MM:SS.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
