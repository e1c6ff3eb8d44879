package ui

import "github.com/jedib0t/go-pretty/v6/text"

// Red, Green and Yellow color terminal output. They respect go-pretty's
// global color switches (text.DisableColors, NO_COLOR).
func Red(s string) string    { return text.FgHiRed.Sprint(s) }
func Green(s string) string  { return text.FgHiGreen.Sprint(s) }
func Yellow(s string) string { return text.FgHiYellow.Sprint(s) }
