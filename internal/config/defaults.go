package config

const (
	defaultDataDir        = "~/.local/share/capstan"
	defaultLogDir         = "~/.local/share/capstan/logs"
	defaultPollInterval   = 2
	defaultJobTimeout     = 3600
	defaultShell          = "/bin/sh"
	defaultHistoryEnabled = true
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Runner: Runner{
			PollInterval:   defaultPollInterval,
			DefaultTimeout: defaultJobTimeout,
			Shell:          defaultShell,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
