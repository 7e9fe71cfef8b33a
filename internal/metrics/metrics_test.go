package metrics

import "testing"

// A nil *Metrics must be usable everywhere a real one is, so tests and
// optional wiring can skip collector registration.
func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.Cycle(0.5, true)
	m.Command("mode", true)
	m.Command("temperature", false)
	m.Decision(2, 1, true)
}
