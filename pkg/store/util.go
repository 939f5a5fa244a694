package store

import (
	"strconv"
	"strings"
)

// Key prefixes.
const (
	ConfigPrefix  = "config:"
	SessionPrefix = "session:"
)

// MakeConfigKey returns the key of the configuration with the given id.
func MakeConfigKey(id string) string {
	return ConfigPrefix + id
}

// ParseConfigKey returns the id part of a configuration key.
func ParseConfigKey(key string) (id string, ok bool) {
	if !strings.HasPrefix(key, ConfigPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, ConfigPrefix), true
}

// MakeSessionKey returns the key of the session with the given token hash.
func MakeSessionKey(tokenHash string) string {
	return SessionPrefix + tokenHash
}

// MaxNumericID returns the highest decimal id among config keys, or 0 when
// none of them has a numeric id. A leading run of digits counts, so
// "config:12abc" contributes 12.
func MaxNumericID(keys []KeyInfo) int64 {
	var max int64
	for _, k := range keys {
		id, ok := ParseConfigKey(k.Name)
		if !ok {
			continue
		}
		n, ok := leadingInt(id)
		if ok && n > max {
			max = n
		}
	}
	return max
}

func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
