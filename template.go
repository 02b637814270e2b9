package bluespess

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Template is a named preset: a component list plus default variable
// values, merged onto an atom at creation time. Templates are static
// configuration, not runtime state.
type Template struct {
	Name       string         `yaml:"name"`
	Components []string       `yaml:"components"`
	Vars       map[string]any `yaml:"vars"`

	processed bool
}

// templateFile is the on-disk YAML shape.
type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// RegisterTemplate adds a template to the registry. Duplicate names are a
// configuration error.
func (w *World) RegisterTemplate(t *Template) error {
	if t.Name == "" {
		return fmt.Errorf("template with empty name")
	}
	if _, ok := w.templates[t.Name]; ok {
		return fmt.Errorf("template %s already exists", t.Name)
	}
	w.templates[t.Name] = t
	return nil
}

// LoadTemplatesYAML reads a YAML template file and registers everything in
// it.
func (w *World) LoadTemplatesYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read templates: %w", err)
	}
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	for _, t := range file.Templates {
		if err := w.RegisterTemplate(t); err != nil {
			return err
		}
	}
	w.log.WithField("count", len(file.Templates)).Info("templates loaded")
	return nil
}

// processTemplate resolves the component closure and load order, then
// merges component defaults behind the template's own vars. Later-sorted
// components must not clobber earlier-applied values, so defaults are
// applied in reverse sorted order.
func (w *World) processTemplate(t *Template) error {
	if t.processed {
		return nil
	}
	if len(t.Components) > 0 {
		sorted, err := w.resolveComponents(t.Components)
		if err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
		t.Components = sorted
		if t.Vars == nil {
			t.Vars = make(map[string]any)
		}
		for i := len(sorted) - 1; i >= 0; i-- {
			info := w.components[sorted[i]]
			if info.Defaults != nil {
				weakDeepAssign(t.Vars, info.Defaults)
			}
		}
	}
	t.processed = true
	return nil
}

// CreateAtom instantiates the named template at the given loc (which may be
// nil for an unplaced atom).
func (w *World) CreateAtom(templateName string, loc Loc) (*Atom, error) {
	t, ok := w.templates[templateName]
	if !ok {
		return nil, fmt.Errorf("template %s does not exist", templateName)
	}
	return w.CreateAtomWith(t, loc)
}

// CreateAtomAt instantiates the named template at continuous world
// coordinates.
func (w *World) CreateAtomAt(templateName string, x, y, z float64) (*Atom, error) {
	a, err := w.CreateAtom(templateName, nil)
	if err != nil {
		return nil, err
	}
	if err := a.MoveTo(x, y, z); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAtomWith instantiates an explicit template, processing it first if
// needed.
func (w *World) CreateAtomWith(t *Template, loc Loc) (*Atom, error) {
	if err := w.processTemplate(t); err != nil {
		return nil, err
	}
	w.nextAtomID++
	a := &Atom{
		world:               w,
		id:                  w.nextAtomID,
		template:            t,
		name:                "object",
		glideSize:           defaultGlideSize,
		dir:                 South,
		Gender:              "neutral",
		visible:             true,
		boundsWidth:         1,
		boundsHeight:        1,
		WalkSize:            defaultWalkSize,
		WalkDelay:           defaultWalkDelay,
		WalkReason:          "walking",
		MovementGranularity: defaultMovementGranularity,
		components:          make(map[string]Component),
	}
	w.atoms[a.id] = a

	for key, value := range t.Vars {
		switch key {
		case "appearance", "components", "overlays":
			continue
		}
		a.applyVar(key, value)
	}
	if appearance, ok := t.Vars["appearance"].(map[string]any); ok {
		for key, value := range appearance {
			a.applyVar(key, value)
		}
	}
	if overlays, ok := t.Vars["overlays"].(map[string]any); ok {
		for key, value := range overlays {
			if m, ok := value.(map[string]any); ok {
				a.SetOverlay(key, overlayFromMap(m))
			}
		}
	}

	componentVars, _ := t.Vars["components"].(map[string]any)
	for _, name := range t.Components {
		info := w.components[name]
		vars, _ := componentVars[name].(map[string]any)
		instance, err := info.New(a, vars)
		if err != nil {
			return nil, fmt.Errorf("template %s component %s: %w", t.Name, name, err)
		}
		a.components[name] = instance
		a.componentOrder = append(a.componentOrder, name)
	}

	if loc != nil {
		if err := a.SetLoc(loc); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// applyVar maps a template variable name onto the atom. Unknown names are
// logged and skipped, not fatal.
func (a *Atom) applyVar(key string, value any) {
	switch key {
	case "name":
		a.name, _ = value.(string)
	case "icon":
		a.icon, _ = value.(string)
	case "icon_state":
		a.iconState, _ = value.(string)
	case "dir":
		a.dir = toInt(value, a.dir)
	case "layer":
		a.layer = toFloat(value, a.layer)
	case "glide_size":
		a.glideSize = toFloat(value, a.glideSize)
	case "color":
		a.color, _ = value.(string)
	case "alpha":
		a.alpha = toFloat(value, a.alpha)
	case "opacity":
		a.opacity = toBool(value)
	case "visible":
		a.visible = toBool(value)
	case "density":
		a.Density = toInt(value, a.Density)
	case "pass_flags":
		a.PassFlags = toInt(value, a.PassFlags)
	case "let_pass_flags":
		a.LetPassFlags = toInt(value, a.LetPassFlags)
	case "mouse_opacity":
		a.mouseOpacity = toInt(value, a.mouseOpacity)
	case "gender":
		a.Gender, _ = value.(string)
	case "bounds_x":
		a.boundsX = toFloat(value, a.boundsX)
	case "bounds_y":
		a.boundsY = toFloat(value, a.boundsY)
	case "bounds_width":
		a.boundsWidth = toFloat(value, a.boundsWidth)
	case "bounds_height":
		a.boundsHeight = toFloat(value, a.boundsHeight)
	case "walk_delay":
		a.WalkDelay = time.Duration(toFloat(value, a.WalkDelay.Seconds()*1000)) * time.Millisecond
	case "walk_size":
		a.WalkSize = toFloat(value, a.WalkSize)
	default:
		a.world.log.WithField("template", a.template.Name).
			Warnf("unknown template var %q skipped", key)
	}
}

func overlayFromMap(m map[string]any) Overlay {
	return Overlay{
		Icon:         toString(m["icon"]),
		IconState:    toString(m["icon_state"]),
		Dir:          toInt(m["dir"], 0),
		Color:        toString(m["color"]),
		Alpha:        toFloat(m["alpha"], 0),
		OverlayLayer: toFloat(m["overlay_layer"], 0),
	}
}

// weakDeepAssign merges src behind dst: existing keys in dst win, nested
// maps merge recursively.
func weakDeepAssign(dst, src map[string]any) {
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstVal, exists := dst[key]
		if !exists {
			if srcIsMap {
				cloned := make(map[string]any, len(srcMap))
				weakDeepAssign(cloned, srcMap)
				dst[key] = cloned
			} else {
				dst[key] = srcVal
			}
			continue
		}
		if dstMap, ok := dstVal.(map[string]any); ok && srcIsMap {
			weakDeepAssign(dstMap, srcMap)
		}
	}
}

func toFloat(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return fallback
}

func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case uint64:
		return int(n)
	}
	return fallback
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
