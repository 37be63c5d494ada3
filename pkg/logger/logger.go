package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	stdlog "github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}

	Log = zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Caller().
		Logger()
	stdlog.Logger = Log
}

// SetLevel sets the log level from the server mode. Gin's "release"
// and "test" modes map to info; anything else is parsed as a zerolog
// level so LOG-style values ("debug", "warn") work too.
func SetLevel(mode string) {
	var level zerolog.Level
	switch mode {
	case "release", "test":
		level = zerolog.InfoLevel
	default:
		var err error
		level, err = zerolog.ParseLevel(mode)
		if err != nil {
			Log.Warn().Str("level", mode).Msg("invalid log level, defaulting to info")
			level = zerolog.InfoLevel
		}
	}
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
	stdlog.Logger = Log
}
