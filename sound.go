package bluespess

import (
	"fmt"
	"math/rand"
)

// Sound is a one-shot audio cue. A sound plays at most once; create a new
// one to replay. The id lets clients stop a still-playing cue.
type Sound struct {
	ID           string  `json:"id"`
	Path         string  `json:"path"`
	PlaybackRate float64 `json:"playback_rate,omitempty"`
	Volume       float64 `json:"volume,omitempty"`

	Emitter *Atom `json:"-"`

	world   *World
	playing bool
	clients map[*Client]struct{}
}

// NewSound builds a sound cue for the given asset path. vary randomizes
// the playback rate by ±25% for texture.
func (w *World) NewSound(path string, vary bool) *Sound {
	w.nextSoundID++
	s := &Sound{
		ID:           fmt.Sprintf("ID_%d", w.nextSoundID),
		Path:         path,
		PlaybackRate: 1,
		world:        w,
	}
	if vary {
		s.PlaybackRate *= rand.Float64()*0.5 + 0.75
	}
	return s
}

// Playing reports whether the sound has been played and not yet stopped.
func (s *Sound) Playing() bool { return s.playing }

// PlayTo queues the sound for the given mob atoms' clients, and for every
// client observing through their eyes, subject to each hearer's sound
// policy. Replaying is a programming error.
func (s *Sound) PlayTo(mobs ...*Atom) error {
	if s.playing {
		return fmt.Errorf("cannot play sound %s more than once, create a new sound instead", s.ID)
	}
	s.playing = true
	s.clients = make(map[*Client]struct{})
	for _, mob := range mobs {
		if mob == nil {
			continue
		}
		if eye := eyeOf(mob); eye != nil {
			for _, observer := range eye.observers {
				if observer.client == nil {
					continue
				}
				if h, ok := observer.atom.Component("Hearer").(*Hearer); ok && !h.canHearSound(s) {
					continue
				}
				s.clients[observer.client] = struct{}{}
			}
		}
		if m := mobOf(mob); m != nil && m.client != nil {
			if h, ok := mob.Component("Hearer").(*Hearer); ok && !h.canHearSound(s) {
				continue
			}
			s.clients[m.client] = struct{}{}
		}
	}
	for client := range s.clients {
		client.enqueueSoundPlay(s)
	}
	return nil
}

// EmitFrom plays the sound to every mob hearer perceiving a tile the
// atom's base mover occupies.
func (s *Sound) EmitFrom(atom *Atom) error {
	if s.Emitter == nil {
		s.Emitter = atom
	}
	seen := make(map[*Atom]struct{})
	var mobs []*Atom
	for _, tile := range atom.BaseMover().PartialTiles() {
		for _, hearer := range tile.hearers {
			if _, done := seen[hearer]; done {
				continue
			}
			seen[hearer] = struct{}{}
			if hearer.HasComponent("Mob") {
				mobs = append(mobs, hearer)
			}
		}
	}
	return s.PlayTo(mobs...)
}

// Stop tells every client still playing the sound to cut it.
func (s *Sound) Stop() {
	if !s.playing {
		return
	}
	s.playing = false
	for client := range s.clients {
		client.enqueueSoundStop(s.ID)
	}
}
