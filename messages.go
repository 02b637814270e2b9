package bluespess

// Wire structs. Server messages are sparse: absent keys are omitted so a
// quiet tick costs nothing on the wire.

// AtomSnapshot is the full client-relevant state of an atom, sent once when
// it becomes visible to an observer.
type AtomSnapshot struct {
	NetworkID    string             `json:"network_id"`
	Icon         string             `json:"icon,omitempty"`
	IconState    string             `json:"icon_state,omitempty"`
	Dir          int                `json:"dir,omitempty"`
	Layer        float64            `json:"layer,omitempty"`
	Name         string             `json:"name,omitempty"`
	GlideSize    float64            `json:"glide_size,omitempty"`
	ScreenLocX   *float64           `json:"screen_loc_x,omitempty"`
	ScreenLocY   *float64           `json:"screen_loc_y,omitempty"`
	MouseOpacity int                `json:"mouse_opacity,omitempty"`
	Overlays     map[string]Overlay `json:"overlays,omitempty"`
	X            float64            `json:"x"`
	Y            float64            `json:"y"`
	Opacity      bool               `json:"opacity,omitempty"`
	Flick        *Flick             `json:"flick,omitempty"`
	Color        string             `json:"color,omitempty"`
	Alpha        float64            `json:"alpha,omitempty"`
	EyeID        string             `json:"eye_id,omitempty"`

	// Components lists the networked component names present; their field
	// maps ride alongside.
	Components    []string                  `json:"components,omitempty"`
	ComponentVars map[string]map[string]any `json:"component_vars,omitempty"`
}

// EyeHint re-centers the client camera for one named eye.
type EyeHint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	GlideSize float64 `json:"glide_size,omitempty"`
}

// SoundMessage carries sound cues to start and stop.
type SoundMessage struct {
	Play []*Sound `json:"play,omitempty"`
	Stop []string `json:"stop,omitempty"`
}

// PanelContent is one server-to-panel payload.
type PanelContent struct {
	ID       string `json:"id"`
	Contents any    `json:"contents"`
}

// PanelMessage carries panel lifecycle and traffic.
type PanelMessage struct {
	Create  map[string]PanelProps `json:"create,omitempty"`
	Message []PanelContent        `json:"message,omitempty"`
	Close   []string              `json:"close,omitempty"`
}

// StateMessage is the per-tick server-to-client frame. Update entries are
// maps because their key set is exactly the dirty fields, nothing more.
type StateMessage struct {
	CreateAtoms []AtomSnapshot     `json:"create_atoms,omitempty"`
	UpdateAtoms []map[string]any   `json:"update_atoms,omitempty"`
	DeleteAtoms []string           `json:"delete_atoms,omitempty"`
	AddTiles    []string           `json:"add_tiles,omitempty"`
	RemoveTiles []string           `json:"remove_tiles,omitempty"`
	Eye         map[string]EyeHint `json:"eye,omitempty"`
	ToChat      []string           `json:"to_chat,omitempty"`
	Sound       *SoundMessage      `json:"sound,omitempty"`
	Panel       *PanelMessage      `json:"panel,omitempty"`
	Pong        bool               `json:"pong,omitempty"`
	Timestamp   float64            `json:"timestamp"`
}

func (m *StateMessage) empty() bool {
	return len(m.CreateAtoms) == 0 && len(m.UpdateAtoms) == 0 &&
		len(m.DeleteAtoms) == 0 && len(m.AddTiles) == 0 &&
		len(m.RemoveTiles) == 0 && len(m.Eye) == 0 && len(m.ToChat) == 0 &&
		m.Sound == nil && m.Panel == nil && !m.Pong
}

// ClientPanelMessage is the inbound panel traffic.
type ClientPanelMessage struct {
	Message []PanelContent `json:"message,omitempty"`
	Close   []string       `json:"close,omitempty"`
}

// ClientMessage is anything a client may send. Exactly the recognized keys
// are acted on; unknown keys are ignored.
type ClientMessage struct {
	Login   string              `json:"login,omitempty"`
	Keydown *KeyInput           `json:"keydown,omitempty"`
	Keyup   *KeyInput           `json:"keyup,omitempty"`
	ClickOn *ClickInput         `json:"click_on,omitempty"`
	Drag    *DragInput          `json:"drag,omitempty"`
	Panel   *ClientPanelMessage `json:"panel,omitempty"`
	Ping    bool                `json:"ping,omitempty"`
}
