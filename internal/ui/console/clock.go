package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// FormatClock renders d as mm:ss. Minutes are not wrapped into hours.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// ParseClock parses mm:ss or a plain number of seconds.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	minutes, seconds, found := strings.Cut(s, ":")
	if !found {
		minutes, seconds = "0", s
	}

	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, errors.Newf("invalid minutes in %q", s)
	}
	sec, err := strconv.Atoi(seconds)
	if err != nil || sec < 0 || (found && sec > 59) {
		return 0, errors.Newf("invalid seconds in %q", s)
	}

	return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
