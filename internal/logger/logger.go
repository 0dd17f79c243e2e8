// Package logger holds the process-wide structured logger shared by the
// command line tools. Model output goes to stdout through fmt; everything
// diagnostic goes through Logger.
package logger

import (
	"fmt"
	"sync"

	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
)

var (
	Logger      glog.Logger
	initLogOnce sync.Once
)

func init() {
	initLogger()
}

func initLogger() {
	initLogOnce.Do(func() {
		var err error
		Logger, err = glog.NewConsoleWithName("bedrock", glog.LevelInfo)
		if err != nil {
			panic(fmt.Sprintf("failed to create logger: %+v", err))
		}
	})
}

// SetDebug switches the logger between debug and info level.
func SetDebug(debug bool) {
	level := glog.LevelInfo
	if debug {
		level = glog.LevelDebug
	}
	if err := Logger.ChangeLevel(level); err != nil {
		Logger.Warn("change log level", zap.String("level", string(level)), zap.Error(err))
	}
}

// Named returns a child logger tagged with the running command.
func Named(cmd string) glog.Logger {
	return Logger.With(zap.String("cmd", cmd))
}
