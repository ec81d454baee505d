package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Project configuration file names, probed in order.
var projectFileNames = []string{".loom.yaml", ".loom.yml", ".loom.json"}

// findConfigFile returns the first project file present in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range projectFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ancestorConfigs walks upward from dir (exclusive) and returns the
// project files found, ordered farthest-first so that merging leaves the
// nearest ancestor on top.
func ancestorConfigs(dir string) []string {
	var found []string
	current := filepath.Dir(dir)
	for {
		if path := findConfigFile(current); path != "" {
			found = append(found, path)
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	// Reverse: collected nearest-first, merge wants farthest-first.
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

// readFileLayer parses one configuration file into a settings map using a
// throwaway viper instance, so every layer shares viper's format
// handling and key normalization.
func readFileLayer(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// envConfigLayer reads LOOM_CONFIG, which holds either a path to a
// configuration file or inline JSON. Returns nil when unset or invalid.
func envConfigLayer() (map[string]any, error) {
	raw := strings.TrimSpace(os.Getenv("LOOM_CONFIG"))
	if raw == "" {
		return nil, nil
	}

	if info, err := os.Stat(raw); err == nil && !info.IsDir() {
		return readFileLayer(raw)
	}

	var inline map[string]any
	if err := json.Unmarshal([]byte(raw), &inline); err != nil {
		return nil, err
	}
	return inline, nil
}

// deepMerge merges src over dst: mappings merge key by key, everything
// else (sequences included) is replaced wholesale. dst is modified and
// returned.
func deepMerge(dst, src map[string]any) map[string]any {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
	return dst
}
