package ledger

import "github.com/btcsuite/btclog"

// log is the package logger, disabled until the caller wires one in.
var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog turns package logging back off.
func DisableLog() {
	log = btclog.Disabled
}
