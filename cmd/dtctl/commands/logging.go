package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// newLogger builds the logger shared by the client and the stream forwarder.
// --verbose forces debug level.
func newLogger(stderr io.Writer) (*dt.LogrusLogger, error) {
	level, err := logrus.ParseLevel(viper.GetString(logLevelKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidLogLevel, viper.GetString(logLevelKey))
	}

	if viper.GetBool(verboseKey) {
		level = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(logOutput(stderr))

	return dt.NewLogrusLogger(logger), nil
}

func logOutput(stderr io.Writer) io.Writer {
	logFile := viper.GetString(logFileKey)
	if logFile == "" {
		if stderr == nil {
			return os.Stderr
		}

		return stderr
	}

	return &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    constants.LogFileMaxSizeMB,
		MaxBackups: constants.LogFileMaxBackups,
		MaxAge:     constants.LogFileMaxAgeDays,
		Compress:   true,
	}
}
