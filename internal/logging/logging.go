// Package logging builds the structured, leveled logger described in spec
// §7: DEBUG/INFO/WARNING/ERROR/CRITICAL severities, rotating file output.
//
// Grounded on the teacher's pack-mate newLogger
// (Song-Mao-bittap-watch/cmd/validator/main.go): zap.NewProductionConfig
// with an ISO8601 time encoder, level parsed from a string. The rotating
// file sink is grounded on chycee-cryptoGo/internal/infra/logger.go's
// io.MultiWriter(os.Stdout, fileLogger) pattern, translated from slog to
// zap's zapcore.NewTee so both targets share the same encoder.
package logging

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Critical has no native zap level; CRITICAL records are emitted at
// zap.ErrorLevel with an explicit "critical": true field (spec §7).
func Critical(log *zap.Logger, msg string, fields ...zap.Field) {
	log.Error(msg, append(fields, zap.Bool("critical", true))...)
}

// New builds a zap.Logger writing to both stderr and a rotating file under
// dir, at the given level ("debug", "info", "warn", "error").
func New(dir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logPath := filepath.Join(dir, "triarb.log")
	// lumberjack opens its file only on the first write; create it now so
	// the log file exists as soon as New returns.
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	f.Close()

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stderr), lvl),
	)

	return zap.New(core), nil
}

// ExecutionSummary emits the single structured Info record spec §7 requires
// after every execution: balance before/after and the three PnL figures.
// The humanized strings are for log readability only — they never replace
// the underlying float64 fields any invariant or downstream consumer
// relies on.
func ExecutionSummary(log *zap.Logger, parentID string, balanceBefore, balanceAfter, actualPnL, tracedPnL, theoreticalPnL float64) {
	log.Info("execution summary",
		zap.String("parent_id", parentID),
		zap.Float64("balance_before", balanceBefore),
		zap.Float64("balance_after", balanceAfter),
		zap.Float64("actual_pnl", actualPnL),
		zap.Float64("traced_pnl", tracedPnL),
		zap.Float64("theoretical_pnl", theoreticalPnL),
		zap.String("balance_before_human", humanize.FormatFloat("#,###.##", balanceBefore)),
		zap.String("balance_after_human", humanize.FormatFloat("#,###.##", balanceAfter)),
		zap.String("actual_pnl_human", humanize.FormatFloat("#,###.##", actualPnL)),
	)
}
