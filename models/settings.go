package models

// MirrorSettings are the user preferences scrcpy is launched with
type MirrorSettings struct {
	ResolutionX          int    `json:"resolution_x"`
	ResolutionY          int    `json:"resolution_y"`
	MaxFPS               int    `json:"max_fps"`
	Codec                string `json:"codec"` // h264, h265, av1
	AudioEnabled         bool   `json:"audio_enabled"`
	ForwardAllClicks     bool   `json:"forward_all_clicks"`
	GamepadPassthrough   bool   `json:"gamepad_passthrough"`
	AlwaysOnTop          bool   `json:"always_on_top"`
	Fullscreen           bool   `json:"fullscreen"`
	MoveAppToMainDisplay bool   `json:"move_app_to_main_display"`
}

func DefaultMirrorSettings() MirrorSettings {
	return MirrorSettings{
		ResolutionX:      1920,
		ResolutionY:      1080,
		MaxFPS:           60,
		Codec:            "h264",
		AudioEnabled:     true,
		ForwardAllClicks: true,
	}
}
