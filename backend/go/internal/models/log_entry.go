package models

// RequestInfo carries the HTTP request context attached to a log line.
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	Status     int    `json:"status,omitempty"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
}

// ErrorInfo is the structured error block of a log line.
type ErrorInfo struct {
	Message    string `json:"message"`
	Stack      string `json:"stack,omitempty"`
	Type       string `json:"type,omitempty"`        // e.g. "store_error", "dispatch_error"
	StatusCode int    `json:"status_code,omitempty"` // related HTTP status, if any
}
