package config

const (
	defaultConfigPath           = "~/.config/fictionbridge/config.toml"
	defaultStateDir             = "~/.local/state/fictionbridge"
	defaultLogDir               = "~/.local/share/fictionbridge/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultSidecarMode          = ModeDev
	defaultPython               = "python3.11"
	defaultModule               = "fiction_translator"
	defaultSidecarLogLevel      = "INFO"
	defaultCallTimeoutSeconds   = 120
	defaultHealthMethod         = "health.check"
	defaultHealthTimeoutSeconds = 10
	defaultEventBufferSize      = 512
	defaultArchiveRetentionDays = 14
	defaultNotifyRequestTimeout = 10
)

// Launch modes accepted by sidecar.mode.
const (
	ModeDev      = "dev"
	ModePackaged = "packaged"
	ModeCustom   = "custom"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Sidecar: Sidecar{
			Mode:                 defaultSidecarMode,
			Python:               defaultPython,
			Module:               defaultModule,
			LogLevel:             defaultSidecarLogLevel,
			CallTimeoutSeconds:   defaultCallTimeoutSeconds,
			HealthMethod:         defaultHealthMethod,
			HealthTimeoutSeconds: defaultHealthTimeoutSeconds,
		},
		Events: Events{
			BufferSize:           defaultEventBufferSize,
			Archive:              true,
			ArchiveRetentionDays: defaultArchiveRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Disconnect:     true,
		},
	}
}
