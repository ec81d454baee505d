// Package config resolves the effective configuration from five layers
// with deterministic precedence: built-in defaults, the global per-user
// file, ancestor project files, the project file, and the environment.
// Resolution is reentrant and side-effect-free; every call recomputes
// the snapshot so callers never observe stale precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/threadwell/loom/internal/core/domain"
	"github.com/threadwell/loom/internal/logger"
)

// Environment variable surface. LOOM_CONFIG and the LOOM_PROVIDER_* leaf
// overrides are read directly; everything else comes from files.
const (
	envConfig         = "LOOM_CONFIG"
	envResolutionMode = "LOOM_RESOLUTION_MODE"
	envAllowGlobal    = "LOOM_ALLOW_GLOBAL"
	envProviderType   = "LOOM_PROVIDER_TYPE"
	envProviderHost   = "LOOM_PROVIDER_HOST"
	envProviderPort   = "LOOM_PROVIDER_PORT"
	envProviderModel  = "LOOM_PROVIDER_MODEL"
	envProviderAPIKey = "LOOM_PROVIDER_API_KEY"
)

// Resolver reads configuration layers rooted at WorkDir. The zero value
// is not usable; construct with NewResolver.
type Resolver struct {
	WorkDir    string
	GlobalPath string

	log *zap.Logger
}

func NewResolver() *Resolver {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Resolver{
		WorkDir:    wd,
		GlobalPath: DefaultGlobalPath(),
		log:        logger.Get(),
	}
}

func (r *Resolver) logger() *zap.Logger {
	if r.log == nil {
		r.log = logger.Get()
	}
	return r.log
}

// DefaultGlobalPath is the per-user configuration file, disabled unless
// the global-allow flag is set.
func DefaultGlobalPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "loom", "config.yaml")
}

type fileConfig struct {
	ResolutionMode string           `mapstructure:"resolution_mode"`
	AllowGlobal    bool             `mapstructure:"allow_global"`
	DefaultProfile string           `mapstructure:"default_profile"`
	Profiles       []domain.Profile `mapstructure:"profiles"`

	// Legacy single-provider form: a bare "provider" mapping instead of
	// a profiles sequence.
	Provider *domain.Profile `mapstructure:"provider"`
}

// Resolve merges all layers and returns the effective snapshot. Missing
// or unreadable individual layers are skipped with a warning; only total
// unreadability leaves the built-in defaults.
func (r *Resolver) Resolve() (*domain.ResolvedConfig, error) {
	mode, allowGlobal := r.flags()

	merged := map[string]any{}
	provenance := map[string]domain.Source{}
	apply := func(source domain.Source, values map[string]any) {
		for key := range values {
			provenance[key] = source
		}
		merged = deepMerge(merged, values)
	}

	apply(domain.SourceDefault, map[string]any{
		"resolution_mode": string(mode),
		"allow_global":    allowGlobal,
	})

	if allowGlobal && r.GlobalPath != "" {
		r.applyFile(apply, domain.SourceGlobal, r.GlobalPath)
	}

	applyEnvLayer := func() {
		values, err := envConfigLayer()
		if err != nil {
			r.logger().Warn("skipping unreadable environment config layer",
				zap.String("var", envConfig), zap.Error(err))
			return
		}
		if values != nil {
			apply(domain.SourceEnv, values)
		}
	}
	applyFileLayers := func() {
		for _, path := range ancestorConfigs(r.WorkDir) {
			r.applyFile(apply, domain.SourceAncestor, path)
		}
		if path := findConfigFile(r.WorkDir); path != "" {
			r.applyFile(apply, domain.SourceProject, path)
		}
	}

	// Mode decides where the environment config layer sits relative to
	// the file layers. Explicit leaf overrides are applied after both,
	// so they win regardless of mode.
	if mode == domain.ModeEnvFirst {
		applyFileLayers()
		applyEnvLayer()
	} else {
		applyEnvLayer()
		applyFileLayers()
	}

	fc, err := decode(merged)
	if err != nil {
		return nil, fmt.Errorf("decoding merged configuration: %w", err)
	}

	profiles, defaultID := r.assembleProfiles(fc, provenance)

	return &domain.ResolvedConfig{
		Profiles:         profiles,
		DefaultProfileID: defaultID,
		ResolutionMode:   mode,
		AllowGlobal:      allowGlobal,
		Provenance:       provenance,
	}, nil
}

func (r *Resolver) applyFile(apply func(domain.Source, map[string]any), source domain.Source, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	values, err := readFileLayer(path)
	if err != nil {
		r.logger().Warn("skipping unreadable configuration layer",
			zap.String("source", string(source)), zap.String("path", path), zap.Error(err))
		return
	}
	apply(source, values)
}

// flags reads the resolution mode and global-allow switch: environment
// wins; otherwise the project file (then nearest ancestor) may set them
// for itself.
func (r *Resolver) flags() (domain.Mode, bool) {
	mode := domain.Mode(strings.TrimSpace(os.Getenv(envResolutionMode)))
	modeSet := mode == domain.ModeProjectFirst || mode == domain.ModeEnvFirst

	allowGlobal := false
	allowSet := false
	if raw := os.Getenv(envAllowGlobal); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			allowGlobal = parsed
			allowSet = true
		}
	}

	if modeSet && allowSet {
		return mode, allowGlobal
	}

	paths := []string{}
	if p := findConfigFile(r.WorkDir); p != "" {
		paths = append(paths, p)
	}
	ancestors := ancestorConfigs(r.WorkDir)
	for i := len(ancestors) - 1; i >= 0; i-- { // nearest first
		paths = append(paths, ancestors[i])
	}

	for _, path := range paths {
		values, err := readFileLayer(path)
		if err != nil {
			continue
		}
		if !modeSet {
			if peeked, ok := values["resolution_mode"].(string); ok {
				m := domain.Mode(peeked)
				if m == domain.ModeProjectFirst || m == domain.ModeEnvFirst {
					mode = m
					modeSet = true
				}
			}
		}
		if !allowSet {
			if peeked, ok := values["allow_global"].(bool); ok {
				allowGlobal = peeked
				allowSet = true
			}
		}
		if modeSet && allowSet {
			break
		}
	}

	if !modeSet {
		mode = domain.ModeProjectFirst
	}
	return mode, allowGlobal
}

// assembleProfiles folds the profiles sequence, the legacy provider
// mapping, and the explicit environment leaf overrides into the active
// set. Invalid and duplicate profiles are dropped with a warning; a
// configuration error is fatal to that profile only.
func (r *Resolver) assembleProfiles(fc *fileConfig, provenance map[string]domain.Source) ([]domain.Profile, string) {
	declared := make([]domain.Profile, 0, len(fc.Profiles)+1)
	declared = append(declared, fc.Profiles...)

	defaultID := fc.DefaultProfile
	if fc.Provider != nil && fc.Provider.Type != "" {
		legacy := *fc.Provider
		if legacy.ID == "" {
			legacy.ID = "default"
		}
		if _, exists := findByID(declared, legacy.ID); !exists {
			declared = append(declared, legacy)
		}
		if defaultID == "" {
			defaultID = legacy.ID
		}
	}

	leaves := readLeafOverrides()
	if len(declared) == 0 && leaves.typ != "" {
		declared = append(declared, domain.Profile{ID: "default", Type: domain.Kind(leaves.typ)})
		defaultID = "default"
	}
	if leaves.any() && len(declared) > 0 {
		idx := 0
		if i, ok := findByID(declared, defaultID); ok {
			idx = i
		}
		leaves.applyTo(&declared[idx])
		provenance["provider"] = domain.SourceEnv
	}

	active := make([]domain.Profile, 0, len(declared))
	seen := map[string]bool{}
	for _, p := range declared {
		if seen[p.ID] {
			r.logger().Warn("dropping profile with duplicate id", zap.String("id", p.ID))
			continue
		}
		if err := p.Validate(); err != nil {
			r.logger().Warn("dropping invalid profile", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		seen[p.ID] = true
		active = append(active, p)
	}

	if defaultID != "" && !seen[defaultID] {
		r.logger().Warn("default profile is not active", zap.String("id", defaultID))
		defaultID = ""
	}
	return active, defaultID
}

func findByID(profiles []domain.Profile, id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, p := range profiles {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

type leafOverrides struct {
	typ, host, model, apiKey string
	port                     int
}

func readLeafOverrides() leafOverrides {
	var l leafOverrides
	l.typ = strings.TrimSpace(os.Getenv(envProviderType))
	l.host = strings.TrimSpace(os.Getenv(envProviderHost))
	l.model = strings.TrimSpace(os.Getenv(envProviderModel))
	l.apiKey = strings.TrimSpace(os.Getenv(envProviderAPIKey))
	if raw := os.Getenv(envProviderPort); raw != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			l.port = port
		}
	}
	return l
}

func (l leafOverrides) any() bool {
	return l.typ != "" || l.host != "" || l.model != "" || l.apiKey != "" || l.port != 0
}

func (l leafOverrides) applyTo(p *domain.Profile) {
	if l.typ != "" {
		p.Type = domain.Kind(l.typ)
	}
	if l.host != "" {
		p.Host = l.host
	}
	if l.port != 0 {
		p.Port = l.port
	}
	if l.model != "" {
		p.Model = l.model
	}
	if l.apiKey != "" {
		p.APIKey = l.apiKey
	}
}

// decode unmarshals the merged settings through viper so file handling
// and struct decoding share one code path. Timeouts accept both duration
// strings ("30s") and bare numbers of seconds.
func decode(merged map[string]any) (*fileConfig, error) {
	v := viper.New()
	if err := v.MergeConfigMap(merged); err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := v.Unmarshal(&fc, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	return &fc, nil
}

func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			s := data.(string)
			if d, err := time.ParseDuration(s); err == nil {
				return d, nil
			}
			secs, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q", s)
			}
			return time.Duration(secs * float64(time.Second)), nil
		case reflect.Int, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		}
		return data, nil
	}
}
