package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger é a interface para logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ZerologLogger é uma implementação de Logger baseada em zerolog
type ZerologLogger struct {
	log zerolog.Logger
}

// NewLogger cria uma nova instância de Logger
func NewLogger() Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	return &ZerologLogger{
		log: zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger(),
	}
}

// Info registra uma mensagem de informação
func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(l.log.Info(), keysAndValues).Msg(msg)
}

// Error registra uma mensagem de erro
func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	withFields(l.log.Error(), keysAndValues).Msg(msg)
}

// Debug registra uma mensagem de debug
func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	withFields(l.log.Debug(), keysAndValues).Msg(msg)
}

// Warn registra uma mensagem de aviso
func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	withFields(l.log.Warn(), keysAndValues).Msg(msg)
}

// withFields anexa pares chave/valor ao evento de log
func withFields(ev *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	return ev
}
