package bluespess

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewWorld(logger)
}

func wallTemplate() *Template {
	return &Template{
		Name: "wall",
		Vars: map[string]any{
			"name":    "wall",
			"density": 1,
			"opacity": true,
		},
	}
}

func crateTemplate() *Template {
	return &Template{
		Name: "crate",
		Vars: map[string]any{"name": "crate"},
	}
}

func playerTemplate() *Template {
	return &Template{
		Name:       "player",
		Components: []string{"Mob"},
		Vars:       map[string]any{"name": "player"},
	}
}

func mustCreate(t *testing.T, w *World, tmpl *Template, x, y, z float64) *Atom {
	t.Helper()
	a, err := w.CreateAtomWith(tmpl, nil)
	if err != nil {
		t.Fatalf("create %s: %v", tmpl.Name, err)
	}
	if err := a.MoveTo(x, y, z); err != nil {
		t.Fatalf("place %s: %v", tmpl.Name, err)
	}
	return a
}

func TestWorldNowIsMonotonic(t *testing.T) {
	w := newTestWorld(t)
	first := w.Now()
	second := w.Now()
	if second < first {
		t.Fatalf("Now went backwards: %v then %v", first, second)
	}
}

func TestCreateAtomUnknownTemplate(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.CreateAtom("nonexistent", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestInstanceMapSkipsUnknownTemplates(t *testing.T) {
	w := newTestWorld(t)
	if err := w.RegisterTemplate(wallTemplate()); err != nil {
		t.Fatal(err)
	}
	m := &WorldMap{
		Name: "test",
		Instances: []MapInstance{
			{Template: "wall", X: 1, Y: 1},
			{Template: "missing", X: 2, Y: 2},
			{Template: "wall", X: 3, Y: 3},
		},
	}
	if err := w.InstanceMap(m); err != nil {
		t.Fatalf("InstanceMap: %v", err)
	}
	if len(w.Atoms()) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(w.Atoms()))
	}
}
