package mode

// Button is one entry of the viewfinder's control panel.
type Button struct {
	Mode   Mode   `json:"mode"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// ButtonLabel returns the control text for m given the current set.
// AR and VR always read "Toggle ..."; the flags read "Enable ..." or "Disable ...".
func ButtonLabel(s Set, m Mode) string {
	switch m {
	case AR, VR:
		return "Toggle " + m.DisplayName()
	case Filter, Navigation, ObjectRecognition:
		if s.Has(m) {
			return "Disable " + m.DisplayName()
		}
		return "Enable " + m.DisplayName()
	}
	return ""
}

// Buttons returns the control panel for s, in the panel's display order.
func Buttons(s Set) []Button {
	out := make([]Button, 0, len(Togglable))
	for _, m := range Togglable {
		out = append(out, Button{
			Mode:   m,
			Label:  ButtonLabel(s, m),
			Active: s.Has(m),
		})
	}
	return out
}
