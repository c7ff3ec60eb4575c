package color

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Bold   = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a new Color instance
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor()}
}

// shouldEnableColor determines if color should be enabled based on environment
func shouldEnableColor() bool {
	// Check NO_COLOR environment variable (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	term := os.Getenv("TERM")
	if term == "dumb" || term == "" {
		return false
	}

	return true
}

// Ok colors a string green for assets that verified cleanly
func (c *Color) Ok(text string) string {
	if !c.enabled {
		return text
	}
	return Green + text + Reset
}

// Warn colors a string yellow for partial outcomes
func (c *Color) Warn(text string) string {
	if !c.enabled {
		return text
	}
	return Yellow + text + Reset
}

// Fail colors a string red for failed assets
func (c *Color) Fail(text string) string {
	if !c.enabled {
		return text
	}
	return Red + text + Reset
}

// Header makes text bold for section headers
func (c *Color) Header(text string) string {
	if !c.enabled {
		return text
	}
	return Bold + text + Reset
}

// Label colors text cyan for field labels
func (c *Color) Label(text string) string {
	if !c.enabled {
		return text
	}
	return Cyan + text + Reset
}

// StatusSymbol returns the marker printed next to an asset result line
func (c *Color) StatusSymbol(verified bool) string {
	if verified {
		return c.Ok("+")
	}
	return c.Fail("-")
}

// FormatAssetLine formats one asset result line
func (c *Color) FormatAssetLine(fileName, status string, verified bool, retries int) string {
	line := fmt.Sprintf("  %s %s [%s]", c.StatusSymbol(verified), fileName, status)
	if retries > 0 {
		line += fmt.Sprintf(" (%d retries)", retries)
	}
	return line
}

// FormatRunSummary formats the closing summary counts
func (c *Color) FormatRunSummary(succeeded, failed int) string {
	parts := []string{
		c.Ok(fmt.Sprintf("%d succeeded", succeeded)),
		c.Fail(fmt.Sprintf("%d failed", failed)),
	}
	return fmt.Sprintf("Port: %s.", strings.Join(parts, ", "))
}
