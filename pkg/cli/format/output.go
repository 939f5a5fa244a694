// Package format renders CLI messages.
package format

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	SuccessColor = color.New(color.FgGreen, color.Bold)
	ErrorColor   = color.New(color.FgRed, color.Bold)
	WarningColor = color.New(color.FgYellow, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	HeadingColor = color.New(color.FgHiWhite, color.Bold)
	MutedColor   = color.New(color.FgHiBlack)
)

func init() {
	// color already honours NO_COLOR and non-terminal output.
	if _, ok := os.LookupEnv("SUBRELAY_NO_COLOR"); ok {
		color.NoColor = true
	}
	if _, ok := os.LookupEnv("SUBRELAY_FORCE_COLOR"); ok {
		color.NoColor = false
	}
}

// EnableColor enables or disables colored output globally.
func EnableColor(enable bool) {
	color.NoColor = !enable
}

// IsColorEnabled returns whether colored output is enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}

func Success(format string, a ...interface{}) string {
	return SuccessColor.Sprintf(format, a...)
}

func Warning(format string, a ...interface{}) string {
	return WarningColor.Sprintf(format, a...)
}

func Error(format string, a ...interface{}) string {
	return ErrorColor.Sprintf(format, a...)
}

func Info(format string, a ...interface{}) string {
	return InfoColor.Sprintf(format, a...)
}

func Header(format string, a ...interface{}) string {
	return HeadingColor.Sprintf(format, a...)
}

func Muted(format string, a ...interface{}) string {
	return MutedColor.Sprintf(format, a...)
}

// StatusSymbol returns a colorized check or cross.
func StatusSymbol(ok bool) string {
	if ok {
		return SuccessColor.Sprint("✓")
	}
	return ErrorColor.Sprint("✗")
}

// KeyValue formats a "key: value" line with an aligned key column.
func KeyValue(key string, value interface{}) string {
	return fmt.Sprintf("%s %v", HeadingColor.Sprintf("%-14s", key+":"), value)
}
