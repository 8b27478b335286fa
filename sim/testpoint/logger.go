package testpoint

import (
	"encoding/hex"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/celskeggs/streamthrough/sim/txmodel"
	"go.uber.org/zap"
)

const maxLoggedBytes = 32

// Logger is a consumer that writes every delivery to a zap logger and otherwise discards it.
type Logger struct {
	ctx    model.SimContext
	logger *zap.Logger
}

var _ txmodel.Consumer = &Logger{}

func MakeLogger(ctx model.SimContext, name string, logger *zap.Logger) *Logger {
	return &Logger{
		ctx:    ctx,
		logger: logger.Named(name),
	}
}

func dataPrefix(unit *signal.Unit) string {
	data := unit.Data
	if len(data) > maxLoggedBytes {
		return hex.EncodeToString(data[:maxLoggedBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func (l *Logger) fields(sig *signal.Signal) []zap.Field {
	return []zap.Field{
		zap.Stringer("at", l.ctx.Now()),
		zap.Stringer("unit", sig.Unit),
		zap.Duration("duration", sig.Duration),
		zap.String("data", dataPrefix(sig.Unit)),
	}
}

func (l *Logger) DeliverStart(sig *signal.Signal) {
	l.logger.Info("COMM start", l.fields(sig)...)
}

func (l *Logger) DeliverProgress(sig *signal.Signal, position signal.Bits, elapsed time.Duration) {
	l.logger.Info("COMM progress",
		append(l.fields(sig), zap.Stringer("position", position), zap.Duration("elapsed", elapsed))...)
}

func (l *Logger) DeliverEnd(sig *signal.Signal) {
	l.logger.Info("COMM end", l.fields(sig)...)
}
