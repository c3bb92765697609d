package actuator

// Output is a two-level output line (an LED, a relay...).
// Toggle must be idempotent in the sense that two calls restore the level.
// Implementations are not required to be safe for concurrent use; the Bank
// serialises every access.
type Output interface {
	Toggle()
	IsHigh() bool
}

// Pin is an in-memory Output used on hosts without real GPIO.
type Pin struct {
	high bool
}

// NewPin returns a Pin at the given initial level.
func NewPin(high bool) *Pin {
	return &Pin{high: high}
}

func (p *Pin) Toggle()      { p.high = !p.high }
func (p *Pin) IsHigh() bool { return p.high }

// Text renders a level the way the HTTP surface reports it.
func Text(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
