package led

// Pattern is how a lit LED behaves.
type Pattern string

// Patterns
const (
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller drives board LEDs. Implementations map logical LED names to
// hardware.
type Controller interface {
	// Set turns the LED named led on or off. pattern is ignored when off.
	Set(led string, on bool, pattern Pattern) error

	// Available lists the LED names this controller drives.
	Available() []string
}
