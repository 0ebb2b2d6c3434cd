package config

const (
	defaultStateDir            = "~/.local/share/voxcrawl/state"
	defaultWorkDir             = "~/.local/share/voxcrawl/work"
	defaultOutputDir           = "~/voxcrawl-output"
	defaultLogDir              = "~/.local/share/voxcrawl/logs"
	defaultBaseURL             = "https://wiki.leagueoflegends.com"
	defaultRequestDelay        = 0.5
	defaultRequestTimeout      = 30
	defaultUserAgent           = "voxcrawl/dev"
	defaultSampleRate          = 22050
	defaultTargetRMSDb         = -20.0
	defaultSilenceDuration     = 0.3
	defaultMaxReferenceSeconds = 20.0
	defaultSuccessRatio        = 0.5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Source: Source{
			BaseURL:        defaultBaseURL,
			RequestDelay:   defaultRequestDelay,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
		},
		Audio: Audio{
			SampleRate:          defaultSampleRate,
			TargetRMSDb:         defaultTargetRMSDb,
			SilenceDuration:     defaultSilenceDuration,
			MaxReferenceSeconds: defaultMaxReferenceSeconds,
		},
		Workflow: Workflow{
			SuccessRatio: defaultSuccessRatio,
			RetryFailed:  false,
		},
		Catalog: Catalog{
			Enabled: true,
			Path:    defaultCatalogPath(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
