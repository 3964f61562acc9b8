// Package color styles wellnessctl output.
package color

import (
	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	answerColor  = color.New(color.FgHiYellow)
)

func Heading(s string) string { return headingColor.Sprint(s) }
func Info(s string) string    { return infoColor.Sprint(s) }
func Warning(s string) string { return warningColor.Sprint(s) }
func Error(s string) string   { return errorColor.Sprint(s) }
func Answer(s string) string  { return answerColor.Sprint(s) }

// Status colors a user facing document status.
func Status(s string) string {
	switch s {
	case "ready":
		return Info(s)
	case "error":
		return Error(s)
	case "unknown":
		return Warning(s)
	default:
		return Heading(s)
	}
}

// Disable turns styling off, for piped output or --no-color.
func Disable() {
	color.NoColor = true
}
