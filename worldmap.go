package bluespess

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// MapInstance is one placed object in a map file.
type MapInstance struct {
	Template string         `yaml:"template"`
	X        float64        `yaml:"x"`
	Y        float64        `yaml:"y"`
	Z        float64        `yaml:"z"`
	Vars     map[string]any `yaml:"vars"`
}

// WorldMap is a static layout: template instances at coordinates.
type WorldMap struct {
	Name      string        `yaml:"name"`
	Instances []MapInstance `yaml:"instances"`
}

// LoadMapYAML parses a map file without instancing it.
func LoadMapYAML(path string) (*WorldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	var m WorldMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse map: %w", err)
	}
	return &m, nil
}

// InstanceMap creates every object in the map. An instance referencing an
// unknown template is logged and skipped rather than aborting the load.
func (w *World) InstanceMap(m *WorldMap) error {
	created := 0
	for _, inst := range m.Instances {
		t, ok := w.templates[inst.Template]
		if !ok {
			w.log.WithFields(logrus.Fields{"map": m.Name, "template": inst.Template}).
				Warn("unknown template in map, skipped")
			continue
		}
		use := t
		if len(inst.Vars) > 0 {
			if err := w.processTemplate(t); err != nil {
				return err
			}
			vars := make(map[string]any, len(inst.Vars))
			for k, v := range inst.Vars {
				vars[k] = v
			}
			weakDeepAssign(vars, t.Vars)
			use = &Template{Name: t.Name, Components: t.Components, Vars: vars, processed: true}
		}
		a, err := w.CreateAtomWith(use, nil)
		if err != nil {
			return fmt.Errorf("map %s instance %s: %w", m.Name, inst.Template, err)
		}
		if err := a.MoveTo(inst.X, inst.Y, inst.Z); err != nil {
			return err
		}
		created++
	}
	w.log.WithFields(logrus.Fields{"map": m.Name, "atoms": created}).Info("map instanced")
	return nil
}
