package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProfilePrefix names every temporary profile directory.
const ProfilePrefix = "portalkeeper_profile_"

// Profile is an isolated browser user data directory owned by one session.
type Profile struct {
	Dir string
}

// DefaultPreferences returns the preference overrides written into new
// profiles. With relaxTLS the browser keeps insecure SSL content and images
// enabled for portals with broken certificates.
func DefaultPreferences(relaxTLS bool) map[string]any {
	if !relaxTLS {
		return nil
	}
	return map[string]any{
		"profile.default_content_setting_values.insecure_ssl": 1,
		"profile.managed_default_content_settings.images":     1,
	}
}

// NewProfile creates a fresh profile directory under root (the system temp
// directory when empty) and writes prefs into Default/Preferences.
// Dotted keys are expanded into nested objects.
func NewProfile(root string, prefs map[string]any) (*Profile, error) {
	dir, err := os.MkdirTemp(root, ProfilePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	p := &Profile{Dir: dir}
	if len(prefs) == 0 {
		return p, nil
	}

	if err := p.writePreferences(prefs); err != nil {
		_ = p.Remove()
		return nil, err
	}
	return p, nil
}

func (p *Profile) writePreferences(prefs map[string]any) error {
	defaultDir := filepath.Join(p.Dir, "Default")
	if err := os.MkdirAll(defaultDir, 0700); err != nil {
		return fmt.Errorf("failed to create profile Default directory: %w", err)
	}

	data, err := json.MarshalIndent(expandDotted(prefs), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := os.WriteFile(filepath.Join(defaultDir, "Preferences"), data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// Remove deletes the profile directory. Removing twice is not an error.
func (p *Profile) Remove() error {
	if p == nil || p.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(p.Dir); err != nil {
		return fmt.Errorf("failed to remove profile %s: %w", p.Dir, err)
	}
	return nil
}

func expandDotted(flat map[string]any) map[string]any {
	root := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return root
}
