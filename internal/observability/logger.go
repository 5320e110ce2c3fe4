package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// WithSession adds session_key context to the logger.
func (l *Logger) WithSession(sessionKey uint32) *Logger {
	return &Logger{logger: l.logger.With().Uint32("session_key", sessionKey).Logger()}
}

// WithShard adds shard_id context to the logger.
func (l *Logger) WithShard(shardID string) *Logger {
	return &Logger{logger: l.logger.With().Str("shard_id", shardID).Logger()}
}

// WithPlayer adds pc_id/uid context to the logger.
func (l *Logger) WithPlayer(pcID int32, uid int64) *Logger {
	return &Logger{
		logger: l.logger.With().
			Int32("pc_id", pcID).
			Int64("uid", uid).
			Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

// Error logs an error message.
func (l *Logger) Error(err error, msg string) { l.logger.Error().Err(err).Msg(msg) }

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) { l.logger.Fatal().Err(err).Msg(msg) }

// SessionAccepted logs a new connection being registered with the reactor.
func (l *Logger) SessionAccepted(sessionKey uint32, remoteAddr string, kind string) {
	l.logger.Info().
		Uint32("session_key", sessionKey).
		Str("remote_addr", remoteAddr).
		Str("kind", kind).
		Msg("session accepted")
}

// SessionDisconnected logs a session teardown with its classified severity.
func (l *Logger) SessionDisconnected(sessionKey uint32, severity string, reason string) {
	l.logger.Info().
		Uint32("session_key", sessionKey).
		Str("severity", severity).
		Str("reason", reason).
		Msg("session disconnected")
}

// PCEntered logs a successful PC_ENTER handshake (§4.9 step 4).
func (l *Logger) PCEntered(pcID int32, uid int64, channel int32) {
	l.logger.Info().
		Int32("pc_id", pcID).
		Int64("uid", uid).
		Int32("channel", channel).
		Msg("player entered shard")
}

// PlayerSaved logs a successful save_player call.
func (l *Logger) PlayerSaved(pcID int32, uid int64, duration time.Duration) {
	l.logger.Debug().
		Int32("pc_id", pcID).
		Int64("uid", uid).
		Float64("duration_seconds", duration.Seconds()).
		Msg("player saved")
}

// PlayerSaveFailed logs a failed save attempt queued for retry.
func (l *Logger) PlayerSaveFailed(pcID int32, uid int64, err error) {
	l.logger.Error().
		Int32("pc_id", pcID).
		Int64("uid", uid).
		Err(err).
		Msg("player save failed, queued for retry")
}

// LoginShardLinkEstablished logs a successful control-link handshake.
func (l *Logger) LoginShardLinkEstablished(shardID string, remoteAddr string) {
	l.logger.Info().
		Str("shard_id", shardID).
		Str("remote_addr", remoteAddr).
		Msg("login<->shard control link established")
}

// LoginShardLinkFailed logs a control-link failure.
func (l *Logger) LoginShardLinkFailed(shardID string, err error) {
	l.logger.Error().
		Str("shard_id", shardID).
		Err(err).
		Msg("login<->shard control link failed")
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
