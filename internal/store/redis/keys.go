package redis

const (
	// KeyPrefixToggles prefixes the per-actuator toggle counters
	KeyPrefixToggles = "ledctl:toggles:"
	// KeyPrefixLevel prefixes the last reported level of each actuator
	KeyPrefixLevel = "ledctl:led:"
	// ChannelEvents is the pub/sub channel toggle events are published on
	ChannelEvents = "ledctl:events"
)

// Keys are built from the actuator name rather than the requested id: every
// unbound id resolves to the same default actuator.

// TogglesKey returns the counter key for an actuator
func TogglesKey(name string) string {
	return KeyPrefixToggles + name
}

// LevelKey returns the last-level key for an actuator
func LevelKey(name string) string {
	return KeyPrefixLevel + name
}
