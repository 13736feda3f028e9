package order

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const codePrefix = "ORD-"

var ErrMalformedCode = errors.New("order: malformed order code")

// FormatCode renders the human readable code ORD-<YYYYMMDD>-<seq> using the UTC date.
func FormatCode(t time.Time, seq int64) string {
	return fmt.Sprintf("%s%s-%d", codePrefix, t.UTC().Format("20060102"), seq)
}

// ParseCodeSequence returns the trailing sequence number of an order code.
func ParseCodeSequence(code string) (int64, error) {
	if !strings.HasPrefix(code, codePrefix) {
		return 0, ErrMalformedCode
	}
	idx := strings.LastIndexByte(code, '-')
	if idx < len(codePrefix) {
		return 0, ErrMalformedCode
	}
	seq, err := strconv.ParseInt(code[idx+1:], 10, 64)
	if err != nil || seq < 1 {
		return 0, ErrMalformedCode
	}
	return seq, nil
}
