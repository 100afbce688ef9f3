package config

const (
	defaultDataDir            = "~/.local/share/scribe"
	defaultAPIBind            = "127.0.0.1:8316"
	defaultBaseURL            = "http://localhost:8316"
	defaultTranscriberBinary  = "whisper"
	defaultTranscriberModel   = "base"
	defaultDownloaderBinary   = "yt-dlp"
	defaultAudioFormat        = "mp3"
	defaultAudioQuality       = 192
	defaultMailPort           = 465
	defaultIdlePollInterval   = 60
	defaultBatchPauseInterval = 30
	defaultErrorRetryInterval = 10
	defaultMaxAttempts        = 3
	defaultNotifyMaxAttempts  = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
			BaseURL: defaultBaseURL,
		},
		Transcriber: Transcriber{
			Binary: defaultTranscriberBinary,
			Model:  defaultTranscriberModel,
		},
		Downloader: Downloader{
			Binary:       defaultDownloaderBinary,
			AudioFormat:  defaultAudioFormat,
			AudioQuality: defaultAudioQuality,
		},
		Mail: Mail{
			Port: defaultMailPort,
		},
		Workflow: Workflow{
			IdlePollInterval:   defaultIdlePollInterval,
			BatchPauseInterval: defaultBatchPauseInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxAttempts:        defaultMaxAttempts,
			NotifyMaxAttempts:  defaultNotifyMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
