package app

// Config holds runtime wiring options for building the app.
type Config struct {
	ConfigFile   string // TOML file, optional
	Home         string // overrides Client.DataDir, e.g. $HOME/.saltychat
	LogLevel     string // overrides Logging.Level when set
	PingInterval *int   // overrides Client.PingInterval when set
}
