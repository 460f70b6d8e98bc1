package sipsource

import (
	"fmt"
	"log/slog"

	gosiplog "github.com/ghettovoice/gosip/log"
)

// slogAdapter adapts the process-wide slog.Logger to gosip's Logger
// interface, the same role LoggerAdapter plays for logrus.Entry.
type slogAdapter struct {
	logger *slog.Logger
	prefix string
}

func newSlogAdapter(logger *slog.Logger) *slogAdapter {
	return &slogAdapter{logger: logger}
}

func (a *slogAdapter) Fields() gosiplog.Fields { return gosiplog.Fields{} }

func (a *slogAdapter) WithFields(fields map[string]any) gosiplog.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &slogAdapter{logger: a.logger.With(args...), prefix: a.prefix}
}

func (a *slogAdapter) Prefix() string { return a.prefix }

func (a *slogAdapter) WithPrefix(prefix string) gosiplog.Logger {
	return &slogAdapter{logger: a.logger, prefix: prefix}
}

func (a *slogAdapter) Print(args ...any)                 { a.logger.Info(fmt.Sprint(args...)) }
func (a *slogAdapter) Printf(format string, args ...any) { a.logger.Info(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Trace(args ...any)                 { a.logger.Debug(fmt.Sprint(args...)) }
func (a *slogAdapter) Tracef(format string, args ...any) { a.logger.Debug(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Debug(args ...any)                 { a.logger.Debug(fmt.Sprint(args...)) }
func (a *slogAdapter) Debugf(format string, args ...any) { a.logger.Debug(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Info(args ...any)                  { a.logger.Info(fmt.Sprint(args...)) }
func (a *slogAdapter) Infof(format string, args ...any)  { a.logger.Info(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Warn(args ...any)                  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *slogAdapter) Warnf(format string, args ...any)  { a.logger.Warn(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Error(args ...any)                 { a.logger.Error(fmt.Sprint(args...)) }
func (a *slogAdapter) Errorf(format string, args ...any) { a.logger.Error(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Fatal(args ...any)                 { a.logger.Error(fmt.Sprint(args...)) }
func (a *slogAdapter) Fatalf(format string, args ...any) { a.logger.Error(fmt.Sprintf(format, args...)) }
func (a *slogAdapter) Panic(args ...any)                 { a.logger.Error(fmt.Sprint(args...)) }
func (a *slogAdapter) Panicf(format string, args ...any) { a.logger.Error(fmt.Sprintf(format, args...)) }
