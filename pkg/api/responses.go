package api

// AttemptInfo reports one failed candidate from a routed call, in the
// order candidates were tried.
type AttemptInfo struct {
	Profile string `json:"profile"`
	Reason  string `json:"reason"`
}

// RouteResponse is the outcome of a routed operation.
type RouteResponse struct {
	Output   string        `json:"output"`
	Profile  string        `json:"profile"`
	Backend  string        `json:"backend"`
	Attempts []AttemptInfo `json:"attempts,omitempty"`
}

// ModelsResponse lists models discovered for one profile.
type ModelsResponse struct {
	Profile string      `json:"profile"`
	Models  []ModelInfo `json:"models"`
}

// ErrorResponse is the uniform error body of the HTTP surface.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Class    string            `json:"class,omitempty"`
	Backend  string            `json:"backend,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
	Hint     string            `json:"hint,omitempty"`
	Attempts []AttemptInfo     `json:"attempts,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}
