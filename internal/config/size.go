package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// parseSize converts a human-readable size string to bytes. Both SI (KB, MB)
// and IEC (KiB, MiB) suffixes are accepted; a bare number is raw bytes.
func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n > math.MaxInt32 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(n), nil
}

// maxIntervalSeconds is the largest whole-second count a time.Duration holds.
const maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// ParseInterval parses the pause between passes. A bare non-negative integer
// is seconds, matching the positional INTERVAL argument; anything else must
// be a Go duration string.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("must not be empty")
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("must be non-negative, got %d", secs)
		}

		if secs > maxIntervalSeconds {
			return 0, fmt.Errorf("must be at most %d seconds, got %d", maxIntervalSeconds, secs)
		}

		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: want seconds or a duration like 90s", s)
	}

	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", d)
	}

	return d, nil
}
