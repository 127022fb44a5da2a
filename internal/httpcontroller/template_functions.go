package httpcontroller

import (
	"html/template"
	"strings"
	"time"

	"github.com/tphakala/storm-intake/internal/submission"
)

// templateFunctions returns the functions available in views
func templateFunctions() template.FuncMap {
	return template.FuncMap{
		"add":        addFunc,
		"sub":        subFunc,
		"upper":      strings.ToUpper,
		"ext":        submission.Extension,
		"humanSize":  submission.HumanFileSize,
		"lines":      lines,
		"formatTime": formatTime,
	}
}

func addFunc(a, b int) int {
	return a + b
}

func subFunc(a, b int) int {
	return a - b
}

// lines splits text into lines so views can join them with <br>
// while every line stays escaped
func lines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// formatTime renders a timestamp in server local time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
