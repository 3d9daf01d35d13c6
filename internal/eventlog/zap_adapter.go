package eventlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapBaseLogger adapts a *zap.SugaredLogger to BaseLogger. SugaredLogger
// has no Println/Printf of its own (only per-level Infof/Infoln etc), so
// this forwards both onto its Info methods rather than relying on method
// promotion.
type ZapBaseLogger struct {
	*zap.SugaredLogger
}

func (z ZapBaseLogger) Println(values ...interface{}) { z.SugaredLogger.Infoln(values...) }
func (z ZapBaseLogger) Printf(format string, values ...interface{}) {
	z.SugaredLogger.Infof(format, values...)
}

// NewZapBaseLogger builds a console-and-file tee'd zap logger, in the same
// shape as a typical host-process logger: human-readable console output at
// info level, plus a file sink for full detail.
func NewZapBaseLogger(logFilePath string) (ZapBaseLogger, error) {
	fileConfig := zap.NewProductionConfig()
	fileConfig.OutputPaths = []string{logFilePath}
	fileLogger, err := fileConfig.Build()
	if err != nil {
		return ZapBaseLogger{}, err
	}

	consoleEncoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig), zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	tee := zapcore.NewTee(fileLogger.Core(), consoleCore)
	return ZapBaseLogger{zap.New(tee).Sugar()}, nil
}

// LoggersWithZap builds a Loggers backed entirely by the given zap adapter.
func LoggersWithZap(z ZapBaseLogger) Loggers {
	l := Loggers{}
	l.SetBaseLogger(z)
	l.SetMinLevel(Info)
	return l
}
