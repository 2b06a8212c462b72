package labels

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-annotator-mcp/internal/imaging"
)

// ErrUnknownLabel is returned when selecting a control or value that the
// current set does not define.
var ErrUnknownLabel = errors.New("unknown label")

// Choice controls how many values of one control may be active at once.
type Choice string

const (
	ChoiceSingle   Choice = "single"
	ChoiceMultiple Choice = "multiple"
)

// Label is one selectable value of a control.
type Label struct {
	Value  string `yaml:"value"`
	Color  string `yaml:"color,omitempty"`
	Hotkey string `yaml:"hotkey,omitempty"`
	Hint   string `yaml:"hint,omitempty"`

	color color.NRGBA
}

// RGBA returns the parsed label color.
func (l Label) RGBA() color.NRGBA { return l.color }

// Control is a labeling control attached to the image object, such as a
// rectanglelabels or polygonlabels block.
type Control struct {
	Name   string  `yaml:"name"`
	Type   string  `yaml:"type"`
	ToName string  `yaml:"to_name"`
	Choice Choice  `yaml:"choice,omitempty"`
	Labels []Label `yaml:"labels"`
}

// Label finds a value in the control.
func (c *Control) Label(value string) (Label, bool) {
	for _, l := range c.Labels {
		if l.Value == value {
			return l, true
		}
	}
	return Label{}, false
}

// Set is the full label configuration of one project.
type Set struct {
	Controls []Control `yaml:"controls"`
}

// Control finds a control by name.
func (s *Set) Control(name string) (*Control, bool) {
	for i := range s.Controls {
		if s.Controls[i].Name == name {
			return &s.Controls[i], true
		}
	}
	return nil, false
}

// Parse decodes and validates a YAML label set.
func Parse(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse label set: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a label set from path.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label set: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the set back to YAML.
func (s *Set) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks names and values for duplicates, fills defaults and
// resolves colors. Labels without a color get a generated one.
func (s *Set) Validate() error {
	names := map[string]bool{}
	hotkeys := map[string]string{}
	auto := 0
	for ci := range s.Controls {
		c := &s.Controls[ci]
		if c.Name == "" {
			return fmt.Errorf("label set: control %d has no name", ci)
		}
		if names[c.Name] {
			return fmt.Errorf("label set: duplicate control %q", c.Name)
		}
		names[c.Name] = true
		if c.Type == "" {
			c.Type = "rectanglelabels"
		}
		switch c.Choice {
		case "":
			c.Choice = ChoiceSingle
		case ChoiceSingle, ChoiceMultiple:
		default:
			return fmt.Errorf("label set: control %q: invalid choice %q", c.Name, c.Choice)
		}
		values := map[string]bool{}
		for li := range c.Labels {
			l := &c.Labels[li]
			if strings.TrimSpace(l.Value) == "" {
				return fmt.Errorf("label set: control %q: label %d has no value", c.Name, li)
			}
			if values[l.Value] {
				return fmt.Errorf("label set: control %q: duplicate label %q", c.Name, l.Value)
			}
			values[l.Value] = true
			if l.Hotkey != "" {
				key := strings.ToLower(l.Hotkey)
				if other, ok := hotkeys[key]; ok {
					return fmt.Errorf("label set: hotkey %q used by %q and %q", l.Hotkey, other, l.Value)
				}
				hotkeys[key] = l.Value
			}
			if l.Color == "" {
				l.color = imaging.AutoColor(auto)
				auto++
				continue
			}
			col, err := imaging.ParseColor(l.Color)
			if err != nil {
				return fmt.Errorf("label set: label %q: %w", l.Value, err)
			}
			l.color = col
		}
	}
	return nil
}
