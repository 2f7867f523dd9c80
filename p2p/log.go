package p2p

import (
	"github.com/btcsuite/btclog"
	"github.com/btccli/btc-cli/build"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "PEER"

// log is a logger that is initialized with the btclog.Disabled logger.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// DisableLog disables all logging output.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
