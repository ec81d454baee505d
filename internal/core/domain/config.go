package domain

// Mode is the precedence strategy ordering environment against file layers.
type Mode string

const (
	// ModeProjectFirst ranks project files above the environment config
	// layer for non-explicit values. Explicit LOOM_PROVIDER_* leaf
	// overrides still win regardless of mode.
	ModeProjectFirst Mode = "project-first"
	// ModeEnvFirst ranks the environment config layer above every file
	// layer.
	ModeEnvFirst Mode = "env-first"
)

// Source names the configuration layer a value came from.
type Source string

const (
	SourceDefault  Source = "default"
	SourceGlobal   Source = "global"
	SourceAncestor Source = "ancestor"
	SourceProject  Source = "project"
	SourceEnv      Source = "env"
)

// ResolvedConfig is the immutable snapshot produced by one resolution pass.
// It is recomputed on every Resolve call; callers that cache it must
// invalidate on configuration writes.
type ResolvedConfig struct {
	Profiles         []Profile         `json:"profiles"`
	DefaultProfileID string            `json:"default_profile,omitempty"`
	ResolutionMode   Mode              `json:"resolution_mode"`
	AllowGlobal      bool              `json:"allow_global"`
	Provenance       map[string]Source `json:"provenance"`
}

// Profile returns the active profile with the given id.
func (c *ResolvedConfig) Profile(id string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// Default returns the configured default profile, when one is both named
// and active.
func (c *ResolvedConfig) Default() (Profile, bool) {
	if c.DefaultProfileID == "" {
		return Profile{}, false
	}
	return c.Profile(c.DefaultProfileID)
}
