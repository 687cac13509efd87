// Package config reads the app's drift.yaml: the app identity shared with
// the Drift CLI, plus the permissions section that drives the startup gate.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/mobitant/bestfood/pkg/gate"
)

// FileName is the configuration file looked up in the project root.
const FileName = "drift.yaml"

// Default permissions the app needs before reaching the main screen.
var DefaultRequired = []string{
	"android.permission.CAMERA",
	"android.permission.READ_PHONE_STATE",
	"android.permission.ACCESS_FINE_LOCATION",
}

// Default dialog strings.
const (
	DefaultDialogTitle    = "Permission settings"
	DefaultDialogMessage  = "Some permissions the app needs were not granted. Open the app settings to grant them?"
	DefaultSettingsLabel  = "Settings"
	DefaultCancelLabel    = "Cancel"
	DefaultRestartMessage = "After granting the permissions, please start the app again."
)

// Config represents drift.yaml.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Permissions PermissionsConfig `yaml:"permissions"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// PermissionsConfig configures the startup permission gate.
type PermissionsConfig struct {
	MinSDK   int          `yaml:"min_sdk,omitempty"`
	Required []string     `yaml:"required,omitempty"`
	Dialog   DialogConfig `yaml:"dialog,omitempty"`
}

// DialogConfig holds the texts shown when permissions are denied.
type DialogConfig struct {
	Title    string `yaml:"title,omitempty"`
	Message  string `yaml:"message,omitempty"`
	Settings string `yaml:"settings,omitempty"`
	Cancel   string `yaml:"cancel,omitempty"`
	Restart  string `yaml:"restart,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root       string
	ModulePath string
	AppName    string
	AppID      string
	MinSDK     int
	Required   []string
	Dialog     DialogConfig
}

// Parse decodes drift.yaml content.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// LoadOptional reads drift.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return Parse(data)
}

// Resolve loads drift.yaml (if present) from a project directory and
// resolves defaults, deriving the app name and id from go.mod when unset.
func Resolve(dir string) (*Resolved, error) {
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	r, err := cfg.resolve(modulePath, dir)
	if err != nil {
		return nil, err
	}
	r.Root = dir
	return r, nil
}

// FromBytes resolves an embedded drift.yaml. There is no go.mod to fall
// back on, so app.id must be set.
func FromBytes(data []byte) (*Resolved, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.App.ID) == "" {
		return nil, fmt.Errorf("app.id is required in embedded %s", FileName)
	}
	return cfg.resolve("", "")
}

func (c *Config) resolve(modulePath, dir string) (*Resolved, error) {
	appName := strings.TrimSpace(c.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	appID := strings.TrimSpace(c.App.ID)
	if appID == "" {
		appID = defaultAppID(modulePath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	minSDK := c.Permissions.MinSDK
	if minSDK == 0 {
		minSDK = gate.DefaultMinSDK
	}
	if minSDK < 0 {
		return nil, fmt.Errorf("permissions.min_sdk must be positive (got %d)", minSDK)
	}

	required, err := resolveRequired(c.Permissions.Required)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		ModulePath: modulePath,
		AppName:    appName,
		AppID:      appID,
		MinSDK:     minSDK,
		Required:   required,
		Dialog:     resolveDialog(c.Permissions.Dialog),
	}, nil
}

// Gate returns the gate configuration described by r.
func (r *Resolved) Gate() gate.Config {
	required := make([]gate.Permission, len(r.Required))
	for i, p := range r.Required {
		required[i] = gate.Permission(p)
	}
	return gate.Config{
		Required:  required,
		MinSDK:    r.MinSDK,
		PackageID: r.AppID,
		Prompt: gate.SettingsPrompt{
			Title:         r.Dialog.Title,
			Message:       r.Dialog.Message,
			SettingsLabel: r.Dialog.Settings,
			CancelLabel:   r.Dialog.Cancel,
		},
		RestartMessage: r.Dialog.Restart,
	}
}

func resolveRequired(list []string) ([]string, error) {
	if len(list) == 0 {
		out := make([]string, len(DefaultRequired))
		copy(out, DefaultRequired)
		return out, nil
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, p := range list {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("permissions.required contains an empty entry")
		}
		if strings.ContainsAny(p, " \t/") {
			return nil, fmt.Errorf("permissions.required contains invalid identifier %q", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("permissions.required lists %q twice", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func resolveDialog(d DialogConfig) DialogConfig {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = DefaultDialogTitle
	}
	if strings.TrimSpace(d.Message) == "" {
		d.Message = DefaultDialogMessage
	}
	if strings.TrimSpace(d.Settings) == "" {
		d.Settings = DefaultSettingsLabel
	}
	if strings.TrimSpace(d.Cancel) == "" {
		d.Cancel = DefaultCancelLabel
	}
	if strings.TrimSpace(d.Restart) == "" {
		d.Restart = DefaultRestartMessage
	}
	return d
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := ""
	if dir != "" {
		base = filepath.Base(dir)
	}
	modName, _, ok := module.SplitPathVersion(modulePath)
	if ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "app"
	}
	return base
}

func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(appName, true))
	}

	host := strings.Split(parts[0], ".")
	// github.com/mobitant/bestfood resolves to com.github.mobitant.bestfood.
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	var pathParts []string
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		pathParts = append(pathParts, p)
	}

	segments := append(host, pathParts...)
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment, i > 0)
	}

	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string, allowLeadingDigit bool) string {
	var out []rune
	for _, r := range strings.TrimSpace(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}

	if len(out) == 0 {
		out = []rune("app")
	}

	if !allowLeadingDigit && out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}

	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	for _, segment := range strings.Split(appID, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		if segment[0] == '_' {
			return fmt.Errorf("app.id segments cannot start with '_' (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
