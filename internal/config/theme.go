package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var themeExtensions = []string{".yaml", ".yml", ".json", ".jsonc"}

// ListThemes returns the theme names found under root/themes, sorted.
func ListThemes(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, ThemeDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !isThemeExt(ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadTheme reads a theme file by name. YAML and JSON (with comments) are
// accepted; the document is a flat map of color keys to color values.
func LoadTheme(root, name string) (map[string]string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid theme name %q", name)
	}
	for _, ext := range themeExtensions {
		path := filepath.Join(root, ThemeDir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read theme %s: %w", name, err)
		}
		theme := make(map[string]string)
		switch ext {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &theme)
		default:
			err = json.Unmarshal(jsonc.ToJSON(data), &theme)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse theme %s: %w", path, err)
		}
		return theme, nil
	}
	return nil, fmt.Errorf("theme not found: %s", name)
}

func isThemeExt(ext string) bool {
	for _, e := range themeExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
