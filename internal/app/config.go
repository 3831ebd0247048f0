package app

// Config holds runtime wiring options for building a Wire.
type Config struct {
	HomeDir   string // config directory, e.g. $HOME/.e2ecli
	SuiteName string // "classic" (default) or "nistp256"
	LogLevel  string // "debug", "info" (default), "warn", "error"
}
