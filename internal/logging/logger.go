// Package logging wraps logrus with component tagging, rotating file output,
// and a set of structured helpers for the fleet's recurring log events
// (signals, fills, grid staging, reconciliation, reconnects).
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tradingfleet/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a logrus.Logger with a component tag that gets attached to
// every record it emits.
type Logger struct {
	*logrus.Logger
	component string
}

var globalLogger *Logger

// NewLogger builds a logger from cfg. Output "stdout" writes text to stdout,
// "file" writes JSON to a lumberjack-rotated file, "both" writes JSON to
// stdout and to the rotated file (§10).
func NewLogger(cfg config.LoggingConfig) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "file":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		output = createFileWriter(cfg)
	case "both":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		output = io.MultiWriter(os.Stdout, createFileWriter(cfg))
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
		output = os.Stdout
	}
	logger.SetOutput(output)

	return &Logger{Logger: logger}
}

func createFileWriter(cfg config.LoggingConfig) io.Writer {
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		fmt.Printf("warning: failed to create log directory: %v\n", err)
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "fleet.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// InitGlobalLogger sets the package-wide logger used by the top-level
// convenience functions and by NewComponentLogger.
func InitGlobalLogger(cfg config.LoggingConfig) {
	globalLogger = NewLogger(cfg)
}

// GetGlobalLogger returns the process-wide logger, lazily building a
// stdout/text default if InitGlobalLogger was never called (tests rely on
// this so they don't need to set up config just to log).
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"})
	}
	return globalLogger
}

// NewComponentLogger returns a logger tagged with component, sharing the
// global logger's underlying logrus.Logger (and thus its output/level).
func NewComponentLogger(component string) *Logger {
	return &Logger{Logger: GetGlobalLogger().Logger, component: component}
}

func (l *Logger) withComponent() *logrus.Entry {
	if l.component == "" {
		return logrus.NewEntry(l.Logger)
	}
	return l.Logger.WithField("component", l.component)
}

func (l *Logger) Debug(args ...interface{})                 { l.withComponent().Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.withComponent().Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.withComponent().Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.withComponent().Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.withComponent().Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.withComponent().Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.withComponent().Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.withComponent().Errorf(format, args...) }
func (l *Logger) Fatal(args ...interface{})                 { l.withComponent().Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.withComponent().Fatalf(format, args...) }

// WithFields returns a derived entry whose records carry fields in addition
// to the component tag.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.withComponent().WithFields(fields)
}

// WithError returns a derived entry carrying the error under the
// logrus-conventional "error" key.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.withComponent().WithError(err)
}

// Structured helpers for the fleet's recurring events (§10).

// LogSignal records a Signal Generator decision.
func (l *Logger) LogSignal(symbol, kind, reason string) {
	l.WithFields(map[string]interface{}{
		"event":  "signal",
		"symbol": symbol,
		"kind":   kind,
		"reason": reason,
	}).Info("signal generated")
}

// LogOrder records an order handed to the Order Executor.
func (l *Logger) LogOrder(symbol, side, orderType, tag string, qty, price float64) {
	l.WithFields(map[string]interface{}{
		"event":  "order_placed",
		"symbol": symbol,
		"side":   side,
		"type":   orderType,
		"tag":    tag,
		"qty":    qty,
		"price":  price,
	}).Info("order placed")
}

// LogFill records a fill confirmation returned by the gateway.
func (l *Logger) LogFill(symbol, side, tag string, qty, price, pnl float64) {
	l.WithFields(map[string]interface{}{
		"event":  "fill",
		"symbol": symbol,
		"side":   side,
		"tag":    tag,
		"qty":    qty,
		"price":  price,
		"pnl":    pnl,
	}).Info("fill applied")
}

// LogGridStage records a grid level being staged or cleared.
func (l *Logger) LogGridStage(symbol, action string, level int, price float64) {
	l.WithFields(map[string]interface{}{
		"event":  "grid_stage",
		"symbol": symbol,
		"action": action,
		"level":  level,
		"price":  price,
	}).Info("grid staging")
}

// LogReconciliation records an Orchestrator reconciliation cycle's
// start/stop decisions.
func (l *Logger) LogReconciliation(toStart, toStop, active int) {
	l.WithFields(map[string]interface{}{
		"event":    "reconciliation",
		"to_start": toStart,
		"to_stop":  toStop,
		"active":   active,
	}).Info("reconciliation cycle")
}

// LogReconnect records a LIVE gateway reconnect attempt and the backoff used.
func (l *Logger) LogReconnect(attempt int, backoff time.Duration, err error) {
	entry := l.WithFields(map[string]interface{}{
		"event":   "reconnect",
		"attempt": attempt,
		"backoff": backoff.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("stream reconnecting")
		return
	}
	entry.Info("stream reconnecting")
}

// LogBacktest records one completed backtest parameter combination.
func (l *Logger) LogBacktest(symbol string, timeframe, period int, multiplier, netProfit, winRate float64) {
	l.WithFields(map[string]interface{}{
		"event":      "backtest_combo",
		"symbol":     symbol,
		"timeframe":  timeframe,
		"period":     period,
		"multiplier": multiplier,
		"net_profit": netProfit,
		"win_rate":   winRate,
	}).Debug("backtest combination evaluated")
}

// Package-level convenience wrappers over the global logger.

func Debug(args ...interface{})                 { GetGlobalLogger().Debug(args...) }
func Info(args ...interface{})                  { GetGlobalLogger().Info(args...) }
func Warn(args ...interface{})                  { GetGlobalLogger().Warn(args...) }
func Error(args ...interface{})                 { GetGlobalLogger().Error(args...) }
func Fatal(args ...interface{})                 { GetGlobalLogger().Fatal(args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().Infof(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().Errorf(format, args...) }

// WithField returns an entry carrying one field, built off the global logger.
func WithField(key string, value interface{}) *logrus.Entry {
	return GetGlobalLogger().withComponent().WithField(key, value)
}
