package config

import "time"

const (
	defaultDataDir           = "~/.local/share/reel"
	defaultCacheDir          = "~/.cache/reel"
	defaultLogDir            = "~/.local/share/reel/logs"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultWorkerCount       = 1
	defaultTickInterval      = 1000
	defaultHandoffWait       = 100
	defaultIdlePoll          = 500
	defaultLogTailLines      = 300
	defaultSubprocessNice    = 1
	defaultMoveRetryDelay    = 1000
	defaultNotifyTimeout     = 10
	defaultNotifyRetryMax    = 3
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultRedisStream       = "reel:tasks"
	defaultRedisGroup        = "reel"
	defaultRedisConsumer     = "reel-daemon"
	defaultRedisBlockSeconds = 5
	defaultLibraryID         = 1
)

// Default returns a Config populated with repository defaults. No runners are
// configured by default; the sample file shows typical pipelines.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Workers: Workers{
			Count:                defaultWorkerCount,
			TickIntervalMillis:   defaultTickInterval,
			HandoffWaitMillis:    defaultHandoffWait,
			IdlePollMillis:       defaultIdlePoll,
			LogTailLines:         defaultLogTailLines,
			SubprocessNice:       defaultSubprocessNice,
			MoveRetryDelayMillis: defaultMoveRetryDelay,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			TimeoutSeconds: defaultNotifyTimeout,
			RetryMax:       defaultNotifyRetryMax,
			OnSuccess:      true,
			OnFailure:      true,
		},
		Ingest: Ingest{
			Redis: Redis{
				Addr:         defaultRedisAddr,
				Stream:       defaultRedisStream,
				Group:        defaultRedisGroup,
				Consumer:     defaultRedisConsumer,
				BlockSeconds: defaultRedisBlockSeconds,
				LibraryID:    defaultLibraryID,
			},
		},
	}
}

// TickInterval returns the scheduler tick as a duration.
func (w Workers) TickInterval() time.Duration {
	return time.Duration(w.TickIntervalMillis) * time.Millisecond
}

// HandoffWait returns how long dispatch may wait for a free handoff slot.
func (w Workers) HandoffWait() time.Duration {
	return time.Duration(w.HandoffWaitMillis) * time.Millisecond
}

// IdlePoll returns the periodic wake interval for idle and paused workers.
func (w Workers) IdlePoll() time.Duration {
	return time.Duration(w.IdlePollMillis) * time.Millisecond
}

// SubprocessTimeout returns the watchdog limit; zero disables it.
func (w Workers) SubprocessTimeout() time.Duration {
	return time.Duration(w.SubprocessTimeoutSeconds) * time.Second
}

// MoveRetryDelay returns the pause before retrying a failed final move.
func (w Workers) MoveRetryDelay() time.Duration {
	return time.Duration(w.MoveRetryDelayMillis) * time.Millisecond
}
