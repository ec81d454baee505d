package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/threadwell/loom/internal/core/domain"
)

// Scope selects which configuration file a write lands in.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// writeFile is the on-disk document shape. Writes always produce the
// profiles sequence, never the legacy provider mapping.
type writeFile struct {
	ResolutionMode string       `yaml:"resolution_mode,omitempty"`
	AllowGlobal    bool         `yaml:"allow_global,omitempty"`
	DefaultProfile string       `yaml:"default_profile,omitempty"`
	Profiles       []profileDoc `yaml:"profiles,omitempty"`
}

// profileDoc mirrors domain.Profile but renders the timeout as a
// duration string so a written file reads back through the same decode
// path as a hand-authored one.
type profileDoc struct {
	ID       string      `yaml:"id"`
	Type     domain.Kind `yaml:"type"`
	Tags     []string    `yaml:"tags,omitempty"`
	Priority int         `yaml:"priority,omitempty"`
	Host     string      `yaml:"host,omitempty"`
	Port     int         `yaml:"port,omitempty"`
	Model    string      `yaml:"model,omitempty"`
	APIKey   string      `yaml:"api_key,omitempty"`
	BaseURL  string      `yaml:"base_url,omitempty"`
	OrgID    string      `yaml:"org_id,omitempty"`
	Timeout  any         `yaml:"timeout,omitempty"`
	Binary   string      `yaml:"binary,omitempty"`
	Args     []string    `yaml:"args,omitempty"`
}

func toDoc(p domain.Profile) profileDoc {
	doc := profileDoc{
		ID:       p.ID,
		Type:     p.Type,
		Tags:     p.Tags,
		Priority: p.Priority,
		Host:     p.Host,
		Port:     p.Port,
		Model:    p.Model,
		APIKey:   p.APIKey,
		BaseURL:  p.BaseURL,
		OrgID:    p.OrgID,
		Binary:   p.Binary,
		Args:     p.Args,
	}
	if p.Timeout > 0 {
		doc.Timeout = p.Timeout.String()
	}
	return doc
}

// targetPath picks the file a write goes to. Project writes go to the
// existing project file in WorkDir, or .loom.yaml when none exists yet.
func (r *Resolver) targetPath(scope Scope) (string, error) {
	switch scope {
	case ScopeGlobal:
		if r.GlobalPath == "" {
			return "", domain.ConfigurationError("", "no global configuration path",
				"set the resolver's GlobalPath or use the project scope")
		}
		return r.GlobalPath, nil
	case ScopeProject:
		if path := findConfigFile(r.WorkDir); path != "" {
			return path, nil
		}
		return filepath.Join(r.WorkDir, ".loom.yaml"), nil
	}
	return "", domain.ConfigurationError("", fmt.Sprintf("unknown scope %q", scope),
		"use the project or global scope")
}

func (r *Resolver) load(path string) (*writeFile, error) {
	var doc writeFile
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &doc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}

// store writes the document atomically: a temp file in the same
// directory, then a rename over the target.
func (r *Resolver) store(path string, doc *writeFile) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SaveProfile upserts a profile into the scoped file. The profile is
// validated first so a bad write never lands on disk.
func (r *Resolver) SaveProfile(scope Scope, p domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	path, err := r.targetPath(scope)
	if err != nil {
		return err
	}
	doc, err := r.load(path)
	if err != nil {
		return err
	}

	entry := toDoc(p)
	replaced := false
	for i := range doc.Profiles {
		if doc.Profiles[i].ID == p.ID {
			doc.Profiles[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Profiles = append(doc.Profiles, entry)
	}
	if doc.DefaultProfile == "" {
		doc.DefaultProfile = p.ID
	}
	return r.store(path, doc)
}

// SetDefaultProfile records the scoped file's default. The id must refer
// to a profile declared in that file.
func (r *Resolver) SetDefaultProfile(scope Scope, id string) error {
	path, err := r.targetPath(scope)
	if err != nil {
		return err
	}
	doc, err := r.load(path)
	if err != nil {
		return err
	}

	found := false
	for _, p := range doc.Profiles {
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		return domain.ConfigurationError("", fmt.Sprintf("no profile %q in %s", id, path),
			"save the profile first")
	}
	doc.DefaultProfile = id
	return r.store(path, doc)
}

// RemoveProfile deletes a profile from the scoped file, clearing the
// default when it pointed at the removed profile.
func (r *Resolver) RemoveProfile(scope Scope, id string) error {
	path, err := r.targetPath(scope)
	if err != nil {
		return err
	}
	doc, err := r.load(path)
	if err != nil {
		return err
	}

	kept := doc.Profiles[:0]
	removed := false
	for _, p := range doc.Profiles {
		if p.ID == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return domain.ConfigurationError("", fmt.Sprintf("no profile %q in %s", id, path),
			"list profiles to see what is configured")
	}
	doc.Profiles = kept
	if doc.DefaultProfile == id {
		doc.DefaultProfile = ""
	}
	return r.store(path, doc)
}
