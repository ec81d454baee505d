package domain

// ProbeResult is the normalized outcome of one connectivity check. It is
// ephemeral and never persisted. The JSON shape is consumed directly by
// external CLI and TUI layers.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	Status    *int   `json:"status"`
	LatencyMS *int64 `json:"latency_ms"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
}

// ProbeSuccess builds a successful result.
func ProbeSuccess(status *int, latencyMS *int64, message string) ProbeResult {
	return ProbeResult{OK: true, Status: status, LatencyMS: latencyMS, Message: message}
}

// ProbeFailure builds a failed result. Detail carries the actionable hint.
func ProbeFailure(status *int, latencyMS *int64, message, detail string) ProbeResult {
	return ProbeResult{Status: status, LatencyMS: latencyMS, Message: message, Detail: detail}
}
