package web

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

var outcomeKinds = []recognition.Kind{
	recognition.Recognized,
	recognition.PermissionDenied,
	recognition.UserCancelled,
	recognition.RecognitionFailed,
	recognition.Busy,
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	var b strings.Builder

	toggles := s.screen.Modes().ToggleCounts()
	b.WriteString("# HELP viewfinder_mode_toggles_total Mode toggles by mode\n")
	b.WriteString("# TYPE viewfinder_mode_toggles_total counter\n")
	for _, m := range mode.Togglable {
		fmt.Fprintf(&b, "viewfinder_mode_toggles_total{mode=%q} %d\n", string(m), toggles[m])
	}

	p := s.screen.Pipeline()
	counts := p.Counts()
	b.WriteString("\n# HELP viewfinder_recognition_outcomes_total Pick-and-recognize calls by outcome\n")
	b.WriteString("# TYPE viewfinder_recognition_outcomes_total counter\n")
	for _, k := range outcomeKinds {
		fmt.Fprintf(&b, "viewfinder_recognition_outcomes_total{kind=%q} %d\n", string(k), counts[k])
	}

	pending := 0
	if p.Pending() {
		pending = 1
	}
	fmt.Fprintf(&b, `
# HELP viewfinder_recognition_pending Whether a call is in flight
# TYPE viewfinder_recognition_pending gauge
viewfinder_recognition_pending %d

# HELP viewfinder_state_clients Connected state stream clients
# TYPE viewfinder_state_clients gauge
viewfinder_state_clients %d

# HELP viewfinder_state_dropped_total Snapshots dropped for slow clients
# TYPE viewfinder_state_dropped_total counter
viewfinder_state_dropped_total %d
`, pending, s.stateHub.ClientCount(), s.stateHub.GetStats().Dropped)

	if s.devices != nil {
		stats := s.devices.GetStats()
		fmt.Fprintf(&b, `
# HELP viewfinder_devices Connected device count
# TYPE viewfinder_devices gauge
viewfinder_devices %d

# HELP viewfinder_device_messages_received_total Messages received from devices
# TYPE viewfinder_device_messages_received_total counter
viewfinder_device_messages_received_total %d

# HELP viewfinder_device_messages_sent_total Messages sent to devices
# TYPE viewfinder_device_messages_sent_total counter
viewfinder_device_messages_sent_total %d

# HELP viewfinder_device_commands_rejected_total Device commands that failed
# TYPE viewfinder_device_commands_rejected_total counter
viewfinder_device_commands_rejected_total %d
`, stats.DeviceCount, stats.MessagesReceived, stats.MessagesSent, stats.Rejected)
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}
