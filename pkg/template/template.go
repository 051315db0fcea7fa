// Package template provides placeholder interpolation for step configuration.
package template

import (
	"regexp"

	"github.com/relayhq/relay/pkg/models"
)

// placeholderPattern matches {{dotted.path}} placeholders, non-greedy, with
// optional surrounding whitespace inside the braces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+?)\s*\}\}`)

// Interpolate replaces every {{dotted.path}} occurrence in the template with
// the string form of the resolved context value, or the empty string if the
// path does not resolve. Resolved values are never re-scanned for
// placeholders.
func Interpolate(input string, runContext map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := models.LookupPath(runContext, path)
		if !ok || value == nil {
			return ""
		}

		return models.Stringify(value)
	})
}

// InterpolateConfig applies Interpolate to every top-level string value of a
// step configuration, leaving non-string values untouched.
func InterpolateConfig(config map[string]any, runContext map[string]any) map[string]any {
	interpolated := make(map[string]any, len(config))

	for key, value := range config {
		if str, ok := value.(string); ok {
			interpolated[key] = Interpolate(str, runContext)

			continue
		}

		interpolated[key] = value
	}

	return interpolated
}
