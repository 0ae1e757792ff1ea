// Package settings holds the user preferences the ledger core consumes.
// Values come from the environment so both binaries read the same knobs.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

const (
	timeFormatEnv    = "TIME_FORMAT"
	notificationsEnv = "NOTIFICATIONS_ENABLED"
)

// Settings are resolved once at startup; changing the environment after
// FromEnv has no effect.
type Settings struct {
	// TimeFormat controls presentation of transaction times.
	TimeFormat domain.TimeFormat

	// NotificationsEnabled gates the notifier on automatic ingestion.
	NotificationsEnabled bool
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		TimeFormat:           domain.TwentyFourHour,
		NotificationsEnabled: true,
	}
}

// FromEnv reads settings from the environment, falling back to Defaults
// for unset variables. Unparseable values are an error rather than a
// silent fallback.
func FromEnv() (Settings, error) {
	s := Defaults()

	if v := os.Getenv(timeFormatEnv); v != "" {
		tf, err := domain.ParseTimeFormat(v)
		if err != nil {
			return Settings{}, fmt.Errorf("settings: %s: %w", timeFormatEnv, err)
		}
		s.TimeFormat = tf
	}

	if v := os.Getenv(notificationsEnv); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("settings: %s: %q is not a boolean", notificationsEnv, v)
		}
		s.NotificationsEnabled = enabled
	}

	return s, nil
}

// FormatTime renders a transaction time according to the preference.
// 24h gives "14:05", 12h gives "2:05 PM".
func (s Settings) FormatTime(t civil.Time) string {
	if s.TimeFormat == domain.TwelveHour {
		hour := t.Hour % 12
		if hour == 0 {
			hour = 12
		}
		period := "AM"
		if t.Hour >= 12 {
			period = "PM"
		}
		return fmt.Sprintf("%d:%02d %s", hour, t.Minute, period)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// String is for startup logging.
func (s Settings) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "time_format=%s notifications=%t", s.TimeFormat, s.NotificationsEnabled)
	return b.String()
}
