package split

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultNamePattern is applied when a request carries no naming template.
const DefaultNamePattern = "{original}_part_{index}"

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeTitle converts an outline title into a safe file name component.
func SanitizeTitle(title string) string {
	lower := strings.ToLower(title)
	sanitized := nonAlphanumericRegex.ReplaceAllString(lower, "_")
	sanitized = strings.Trim(sanitized, "_")
	const maxLength = 100
	if len(sanitized) > maxLength {
		sanitized = strings.Trim(sanitized[:maxLength], "_")
	}
	return sanitized
}

// RenderName expands a naming template for one partition. Supported
// placeholders: {original}, {index}, {range}. The result always carries a
// .pdf extension.
func RenderName(pattern, original string, index int, ranges []PageRange) string {
	if pattern == "" {
		pattern = DefaultNamePattern
	}
	base := original
	if strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	if base == "" {
		base = "document"
	}
	labels := make([]string, 0, len(ranges))
	for _, r := range ranges {
		labels = append(labels, r.Label())
	}
	name := pattern
	name = strings.ReplaceAll(name, "{original}", base)
	name = strings.ReplaceAll(name, "{index}", fmt.Sprintf("%d", index))
	name = strings.ReplaceAll(name, "{range}", strings.Join(labels, "_"))
	return ensurePDF(name)
}

func ensurePDF(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	return name + ".pdf"
}
