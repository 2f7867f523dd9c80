package lnutils

import (
	"encoding/hex"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// abbrevBytes is how many bytes AbbrevHexClosure keeps at each end.
const abbrevBytes = 8

// LogClosure defers building an expensive log argument until the logger
// actually formats the line.
type LogClosure func() string

// String invokes the underlying function and returns the result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps c so it can be passed as a %v argument.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}

// SpewLogClosure renders a with spew.Sdump.
func SpewLogClosure(a any) LogClosure {
	return func() string {
		return spew.Sdump(a)
	}
}

// HexDumpClosure renders b as a multi-line hex dump.
func HexDumpClosure(b []byte) LogClosure {
	return func() string {
		return hex.Dump(b)
	}
}

// AbbrevHexClosure renders b as hex on one line. Long inputs keep only the
// first and last few bytes plus the total length, which is enough to tell
// two raw transactions apart in a log.
func AbbrevHexClosure(b []byte) LogClosure {
	return func() string {
		if len(b) <= 2*abbrevBytes {
			return hex.EncodeToString(b)
		}

		return fmt.Sprintf("%x..%x (%d bytes)", b[:abbrevBytes],
			b[len(b)-abbrevBytes:], len(b))
	}
}
