package bluespess

import (
	"fmt"
	"html"
	"math"
)

// Message types. A "see" message reaches anyone with line of sight, a
// "hear" message anyone in earshot; the other sense gets the fallback
// variant.
const (
	MessageSee  = "see"
	MessageHear = "hear"
)

// ChatMessage is a builder for one piece of chat output with per-sense
// variants. Construct with NewChatMessage, chain the variants, then emit.
//
//	NewChatMessage(MessageSee, "The door slides open.").
//		Blind("You hear a faint hiss.").
//		EmitFrom(door)
type ChatMessage struct {
	Type         string
	Message      string
	SelfMessage  string
	DeafMessage  string
	BlindMessage string
	// MsgRange caps delivery by Chebyshev distance from the emitter.
	MsgRange float64
	Emitter  *Atom
}

// NewChatMessage returns a message of the given type with effectively
// unlimited range.
func NewChatMessage(msgType, message string) *ChatMessage {
	return &ChatMessage{Type: msgType, Message: message, MsgRange: 1000}
}

// Self sets the variant shown to the emitter itself, with chaining.
func (m *ChatMessage) Self(message string) *ChatMessage {
	m.SelfMessage = message
	return m
}

// Deaf sets the variant shown to hearers who cannot hear, with chaining.
func (m *ChatMessage) Deaf(message string) *ChatMessage {
	m.DeafMessage = message
	return m
}

// Blind sets the variant shown to hearers who cannot see, with chaining.
func (m *ChatMessage) Blind(message string) *ChatMessage {
	m.BlindMessage = message
	return m
}

// Range caps the delivery distance, with chaining.
func (m *ChatMessage) Range(tiles float64) *ChatMessage {
	m.MsgRange = tiles
	return m
}

// EmitFrom delivers the message to every hearer perceiving a tile the
// atom's base mover occupies, within range.
func (m *ChatMessage) EmitFrom(atom *Atom) *ChatMessage {
	if atom == nil {
		return m
	}
	m.Emitter = atom
	seen := make(map[*Atom]struct{})
	for _, tile := range atom.BaseMover().PartialTiles() {
		for _, hearer := range tile.hearers {
			if _, done := seen[hearer]; done {
				continue
			}
			seen[hearer] = struct{}{}
			if math.Max(math.Abs(hearer.X()-atom.X()), math.Abs(hearer.Y()-atom.Y())) > m.MsgRange {
				continue
			}
			m.showTo(hearer)
		}
	}
	return m
}

// ShowDirectlyTo delivers the message to one target, bypassing range and
// tile checks.
func (m *ChatMessage) ShowDirectlyTo(target, source *Atom) *ChatMessage {
	if target == nil || source == nil || !target.HasComponent("Hearer") {
		return m
	}
	m.Emitter = source
	m.showTo(target)
	return m
}

func (m *ChatMessage) showTo(target *Atom) {
	h, ok := target.Component("Hearer").(*Hearer)
	if !ok {
		return
	}
	text := h.ShowMessage(m)
	if text == "" {
		return
	}
	if mob := mobOf(target); mob != nil && mob.client != nil {
		mob.client.enqueueChat(text)
	}
}

// FormatHTML escapes interpolated values so entity-controlled strings
// cannot inject markup into the chat window.
func FormatHTML(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = html.EscapeString(fmt.Sprint(arg))
	}
	return fmt.Sprintf(format, escaped...)
}
