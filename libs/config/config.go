package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Load populates dst from the process environment. Dotenv files are read first
// (missing files are skipped) and never override variables that are already set.
func Load(dst any, dotenvFiles ...string) error {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func ValidatePort(name, v string) error {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%s must be a valid TCP port (got %q)", name, v)
	}
	return nil
}

// Minutes converts a list of positive minute counts into durations.
// Non-positive entries are rejected.
func Minutes(name string, values []int) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(values))
	for _, m := range values {
		if m <= 0 {
			return nil, fmt.Errorf("%s: minutes must be positive (got %d)", name, m)
		}
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out, nil
}

// Location resolves an IANA zone name, treating empty as UTC.
func Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}
