package logger

import "go.uber.org/zap"

var (
	defaultLogger = NewLogger("partman", zap.DebugLevel)
)

func SetupDefaultLogger(l *zap.SugaredLogger) {
	defaultLogger = l
}

// Default 返回当前的全局日志器.
func Default() *zap.SugaredLogger {
	return defaultLogger
}

// Named 返回全局日志器的具名子日志器, 各组件以此作为默认日志器.
func Named(name string) *zap.SugaredLogger {
	return defaultLogger.Named(name)
}

func Debugf(template string, args ...interface{}) {
	defaultLogger.Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	defaultLogger.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	defaultLogger.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	defaultLogger.Errorf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	defaultLogger.Fatalf(template, args...)
}
