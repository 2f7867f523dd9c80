package main

import (
	"fmt"
	"io"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/btccli/btc-cli/broadcast"
	"github.com/btccli/btc-cli/build"
	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/esplora"
	"github.com/btccli/btc-cli/httppush"
	"github.com/btccli/btc-cli/p2p"
	"github.com/btccli/btc-cli/p2pwire"
	"github.com/btccli/btc-cli/propagation"
	"github.com/btccli/btc-cli/sendtx"
	"github.com/btccli/btc-cli/signal"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
)

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, register them in the init function below.
var (
	logWriter = &build.LogWriter{}

	// logMgr owns the backend and every subsystem logger.
	logMgr = build.NewSubLoggerManager(logWriter)

	// log narrates the command being run.
	log = build.NewSubLogger("CLI", logMgr.GenSubLogger)
)

// Initialize package-global logger variables.
func init() {
	addSubLogger(p2pwire.Subsystem, p2pwire.UseLogger)
	addSubLogger(discovery.Subsystem, discovery.UseLogger)
	addSubLogger(p2p.Subsystem, p2p.UseLogger)
	addSubLogger(httppush.Subsystem, httppush.UseLogger)
	addSubLogger(esplora.Subsystem, esplora.UseLogger)
	addSubLogger(broadcast.Subsystem, broadcast.UseLogger)
	addSubLogger(propagation.Subsystem, propagation.UseLogger)
	addSubLogger(sendtx.Subsystem, sendtx.UseLogger)
	addSubLogger(signal.Subsystem, signal.UseLogger)
	addSubLogger("RPCC", rpcclient.UseLogger)
}

// addSubLogger creates the logger of a subsystem and hands it to the
// package.
func addSubLogger(subsystem string, useLogger func(btclog.Logger)) {
	useLogger(build.NewSubLogger(subsystem, logMgr.GenSubLogger))
}

// initLogging applies the log level and, if a log directory is configured,
// starts mirroring log lines into a rotating file. The returned function
// flushes and closes the file.
func initLogging(cfg *btccfg.Config) (func(), error) {
	err := build.ParseAndSetDebugLevels(cfg.Log.DebugLevel, logMgr)
	if err != nil {
		return nil, err
	}

	if cfg.Log.Quiet {
		logWriter.Console = io.Discard
	}

	if cfg.LogDir == "" {
		return func() {}, nil
	}

	rotator := build.NewRotatingLogWriter()
	logFile := build.LogFilePath(cfg.LogDir, cfg.Network)
	if err := rotator.InitLogRotator(cfg.Log.File, logFile); err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	logWriter.Rotator = rotator
	log.Debugf("Writing log file %v", rotator.Path())

	return func() {
		logWriter.Rotator = nil
		_ = rotator.Close()
	}, nil
}
