package outbound

import "time"

// Scan outcomes reported to ScanMetrics
const (
	ScanOutcomeSuccess = "success"
	ScanOutcomeEmpty   = "empty"
	ScanOutcomeError   = "error"
)

// ScanMetrics records business metrics for completed scans
type ScanMetrics interface {
	RecordScan(outcome string, detected []string, recipes int, duration time.Duration)
}
