package capture

// InputEvent represents a mouse or keyboard event from a viewer's data
// channel: "key_down", "key_up", "mouse_move", "mouse_down", "mouse_up",
// "mouse_wheel".
type InputEvent struct {
	Type      string   `json:"type"`
	X         int      `json:"x,omitempty"`
	Y         int      `json:"y,omitempty"`
	Button    string   `json:"button,omitempty"`    // "left", "right", "middle"
	Key       string   `json:"key,omitempty"`       // browser KeyboardEvent.key naming
	Modifiers []string `json:"modifiers,omitempty"` // "ctrl", "alt", "shift", "meta"
	DX        int      `json:"dx,omitempty"`        // wheel delta, horizontal
	DY        int      `json:"dy,omitempty"`        // wheel delta, vertical
}

// InputHandler processes input events
type InputHandler interface {
	// SendMouseMove moves the mouse cursor to the specified position
	SendMouseMove(x, y int) error

	// SendMouseClick performs a mouse click at the specified position
	SendMouseClick(x, y int, button string) error

	// SendMouseDown presses a mouse button
	SendMouseDown(x, y int, button string) error

	// SendMouseUp releases a mouse button
	SendMouseUp(x, y int, button string) error

	// SendMouseScroll performs a scroll action
	SendMouseScroll(x, y int, delta int) error

	// SendKeyPress presses and releases a key
	SendKeyPress(key string, modifiers []string) error

	// SendKeyDown presses a key
	SendKeyDown(key string) error

	// SendKeyUp releases a key
	SendKeyUp(key string) error

	// HandleEvent processes a generic input event
	HandleEvent(event InputEvent) error
}

// NewInputHandler creates a platform-specific input handler
// Implementation is in input_*.go files
