package record

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// lastNano enforces strictly increasing nanosecond timestamps across rapid
// successive calls within one process, mirroring the monotonic-clock CAS
// loop pattern used elsewhere in this codebase for collision-free IDs.
var lastNano atomic.Int64

func nowNano() int64 {
	now := time.Now().UnixNano()
	for {
		old := lastNano.Load()
		next := now
		if next <= old {
			next = old + 1
		}
		if lastNano.CompareAndSwap(old, next) {
			return next
		}
	}
}

// NewID generates an id of the form mem_YYYYMMDD_<8-hex>, where the date is
// the UTC ingestion date and the suffix is random hex disambiguating records
// created on the same day.
func NewID(at time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("record: generate id suffix: %w", err)
	}
	return fmt.Sprintf("mem_%s_%s", at.UTC().Format("20060102"), hex.EncodeToString(buf)), nil
}

// Touch returns the current strictly-increasing nanosecond timestamp, used
// to timestamp state-slot writes such as last_compression_run.
func Touch() int64 { return nowNano() }
