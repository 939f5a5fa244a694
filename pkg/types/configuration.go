package types

import (
	"strings"
	"time"
	"unicode"
)

// TimestampFormat is the layout of LastSaved on the wire: ISO-8601 UTC with
// millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ConfigDraft is the caller-supplied part of a Configuration.
type ConfigDraft struct {
	Name          string   `json:"name" yaml:"name"`
	BackendURL    string   `json:"backendUrl" yaml:"backendUrl"`
	SubscribeURLs []string `json:"subscribeUrls" yaml:"subscribeUrls"`
	ProxyTag      string   `json:"proxyTag,omitempty" yaml:"proxyTag,omitempty"`
}

// Configuration is a stored subscription configuration.
type Configuration struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	BackendURL    string   `json:"backendUrl" yaml:"backendUrl"`
	SubscribeURLs []string `json:"subscribeUrls" yaml:"subscribeUrls"`
	ProxyTag      string   `json:"proxyTag,omitempty" yaml:"proxyTag,omitempty"`
	LastSaved     string   `json:"lastSaved" yaml:"lastSaved"`
}

// Draft returns the caller-controlled fields of c.
func (c *Configuration) Draft() ConfigDraft {
	return ConfigDraft{
		Name:          c.Name,
		BackendURL:    c.BackendURL,
		SubscribeURLs: append([]string(nil), c.SubscribeURLs...),
		ProxyTag:      c.ProxyTag,
	}
}

// LastSavedTime parses LastSaved. Unparseable values sort as the zero time.
func (c *Configuration) LastSavedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, c.LastSaved)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasProxyTag reports whether outbounds should be chained through ProxyTag.
func (c *Configuration) HasProxyTag() bool {
	return strings.TrimSpace(c.ProxyTag) != ""
}

// FormatTimestamp renders t the way LastSaved is stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// NormalizeSubscribeURLs drops entries that are blank after trimming. Kept
// entries are not modified.
func NormalizeSubscribeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}

// SplitSubscribeURLs splits newline separated text as entered in the admin
// form into a normalized list.
func SplitSubscribeURLs(text string) []string {
	return NormalizeSubscribeURLs(strings.Split(text, "\n"))
}

// Field tags reported by ValidationError.
const (
	FieldName     = "name"
	FieldProxyTag = "proxyTag"
)

const (
	nameInvalidMessage     = "配置名称不能包含标点符号和空格"
	proxyTagInvalidMessage = "链式代理tag不能包含标点符号和空格"
)

// IsIdentifier reports whether s is non-empty and contains no Unicode
// punctuation and no whitespace.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsPunct(r) || isSpace(r) {
			return false
		}
	}
	return true
}

// isSpace matches the whitespace set of ECMAScript's \s, which adds the BOM
// to the Unicode White_Space property and leaves out U+0085.
func isSpace(r rune) bool {
	switch r {
	case '\uFEFF':
		return true
	case '\u0085':
		return false
	}
	return unicode.IsSpace(r)
}

// ValidateName checks a configuration name.
func ValidateName(name string) error {
	if !IsIdentifier(name) {
		return NewValidationError(FieldName, nameInvalidMessage)
	}
	return nil
}

// ValidateProxyTag checks an optional proxy tag. A tag that is blank after
// trimming means "no chaining" and is valid.
func ValidateProxyTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	if !IsIdentifier(tag) {
		return NewValidationError(FieldProxyTag, proxyTagInvalidMessage)
	}
	return nil
}

// Validate checks the name and then the proxy tag.
func (d *ConfigDraft) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	return ValidateProxyTag(d.ProxyTag)
}
