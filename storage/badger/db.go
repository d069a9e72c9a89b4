package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
)

// Logger implements a logger satisfying Badger's Logger interface.
type Logger struct {
	log zerolog.Logger
}

var _ badger.Logger = (*Logger)(nil)

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		log: logger.With().Str("component", "badger").Logger(),
	}
}

func (l *Logger) Errorf(msg string, args ...interface{}) {
	l.log.Error().Msgf(msg, args...)
}

func (l *Logger) Warningf(msg string, args ...interface{}) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *Logger) Infof(msg string, args ...interface{}) {
	l.log.Info().Msgf(msg, args...)
}

func (l *Logger) Debugf(msg string, args ...interface{}) {
	l.log.Debug().Msgf(msg, args...)
}

// OpenDB opens the finalized history database in dir, or in memory if dir is empty.
func OpenDB(log zerolog.Logger, dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(NewLogger(log))
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open history database: %w", err)
	}
	return db, nil
}
