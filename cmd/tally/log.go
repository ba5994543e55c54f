package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/spvtally/tally/ledger"
	"github.com/spvtally/tally/remote"
	"github.com/spvtally/tally/store"
)

// logWriter duplicates log output to stdout and, when configured, the
// rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	log       = backendLog.Logger("MAIN")
	ldgrLog   = backendLog.Logger("LDGR")
	storeLog  = backendLog.Logger("STOR")
	remoteLog = backendLog.Logger("RMTE")
)

func init() {
	ledger.UseLogger(ldgrLog)
	store.UseLogger(storeLog)
	remote.UseLogger(remoteLog)
}

// initLogRotator starts the rotating log file, creating its directory
// as needed.
func initLogRotator(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("create log directory: %v", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("create log rotator: %v", err)
	}
	logRotator = r
	return nil
}

// setLogLevels applies one level to every subsystem.
func setLogLevels(level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	for _, l := range []btclog.Logger{log, ldgrLog, storeLog, remoteLog} {
		l.SetLevel(lvl)
	}
	return nil
}
