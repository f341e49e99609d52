package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalid is wrapped by every validation failure returned from FromTree.
var ErrInvalid = errors.New("invalid configuration")

var (
	SortKeys     = []string{"name", "size", "mtime", "created"}
	DisplayModes = []string{"absolute", "friendly"}
	InfoFields   = []string{"none", "size", "created", "modified"}
)

// Config is the typed configuration snapshot. It is rebuilt from the merged
// Tree after every successful overlay and treated as immutable afterwards.
type Config struct {
	Keys Keys `json:"keys"`
	UI   UI   `json:"ui"`
}

// Keys controls the key sequence engine.
type Keys struct {
	// SequenceTimeoutMS bounds how long an ambiguous prefix waits for the
	// next key. Zero waits indefinitely.
	SequenceTimeoutMS int  `json:"sequence_timeout_ms"`
	WhichKey          bool `json:"which_key"`
}

type UI struct {
	Panes            Panes             `json:"panes"`
	ShowHidden       bool              `json:"show_hidden"`
	DateFormat       string            `json:"date_format"`
	DisplayMode      string            `json:"display_mode"`
	Sort             string            `json:"sort"`
	SortReverse      bool              `json:"sort_reverse"`
	Show             string            `json:"show"`
	MaxListItems     int               `json:"max_list_items"`
	PreviewLines     int               `json:"preview_lines"`
	PreviewCacheSize int               `json:"preview_cache_size"`
	PreviewHighlight bool              `json:"preview_highlight"`
	ConfirmDelete    bool              `json:"confirm_delete"`
	Row              Row               `json:"row"`
	Header           Header            `json:"header"`
	Theme            map[string]string `json:"theme"`
	ThemeName        string            `json:"theme_name"`
}

// Panes holds the relative widths of the parent, current and preview panes.
type Panes struct {
	Parent  int `json:"parent"`
	Current int `json:"current"`
	Preview int `json:"preview"`
}

// Row is the template set used to render a listing row. Templates accept
// {name} and {info}.
type Row struct {
	Icon   string `json:"icon"`
	Left   string `json:"left"`
	Middle string `json:"middle"`
	Right  string `json:"right"`
}

type Header struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Default returns the built-in configuration. Every field has a value here.
func Default() *Config {
	return &Config{
		Keys: Keys{SequenceTimeoutMS: 0, WhichKey: true},
		UI: UI{
			Panes:            Panes{Parent: 10, Current: 20, Preview: 70},
			DateFormat:       "%Y-%m-%d %H:%M",
			DisplayMode:      "absolute",
			Sort:             "name",
			Show:             "none",
			MaxListItems:     5000,
			PreviewLines:     100,
			PreviewCacheSize: 256,
			PreviewHighlight: true,
			ConfirmDelete:    true,
			Row:              Row{Icon: " ", Left: "{name}", Right: "{info}"},
			Header:           Header{Left: "{cwd}", Right: "{current_file_name}"},
			Theme: map[string]string{
				"dir_fg":           "cyan",
				"exec_fg":          "green",
				"selected_fg":      "black",
				"selected_bg":      "cyan",
				"marked_fg":        "yellow",
				"border_fg":        "gray",
				"title_fg":         "gray",
				"info_fg":          "gray",
				"overlay_border":   "blue",
				"error_fg":         "red",
				"which_key_key_fg": "yellow",
			},
			ThemeName: "default",
		},
	}
}

// FromTree decodes a full configuration tree onto the defaults and
// validates the result. Unknown keys are ignored.
func FromTree(t Tree) (*Config, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges, naming each offending field.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%w: %s must be one of: %s", ErrInvalid, field, strings.Join(allowed, "|")))
		}
	}
	nonNegative := func(field string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative", ErrInvalid, field))
		}
	}
	oneOf("ui.sort", c.UI.Sort, SortKeys)
	oneOf("ui.display_mode", c.UI.DisplayMode, DisplayModes)
	oneOf("ui.show", c.UI.Show, InfoFields)
	nonNegative("keys.sequence_timeout_ms", c.Keys.SequenceTimeoutMS)
	nonNegative("ui.panes.parent", c.UI.Panes.Parent)
	nonNegative("ui.panes.current", c.UI.Panes.Current)
	nonNegative("ui.panes.preview", c.UI.Panes.Preview)
	nonNegative("ui.max_list_items", c.UI.MaxListItems)
	nonNegative("ui.preview_lines", c.UI.PreviewLines)
	nonNegative("ui.preview_cache_size", c.UI.PreviewCacheSize)
	if c.UI.Panes.Parent+c.UI.Panes.Current+c.UI.Panes.Preview == 0 {
		errs = append(errs, fmt.Errorf("%w: ui.panes must not all be zero", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Tree encodes the configuration into its untyped form.
func (c *Config) Tree() Tree {
	raw, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("config: unmarshal: %v", err))
	}
	return Normalize(m).(Tree)
}
