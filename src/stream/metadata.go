package stream

import (
	"encoding/json"
	"strings"

	"finlink/src/models"
)

// -----------------------------------------------------------------------------
// Inline Tool Metadata
// -----------------------------------------------------------------------------

// Sentinel markers wrapping the tool-usage payload inside the text stream.
const (
	ToolsStartMarker = "[MCP_TOOLS_START]"
	ToolsEndMarker   = "[MCP_TOOLS_END]"
)

// -----------------------------------------------------------------------------

// ExtractToolUsage strips every sentinel-wrapped substring from text and
// parses the first one into MToolUsage. A payload that fails to parse is
// dropped while the surrounding visible text still passes through; later
// payloads are stripped but ignored. The returned text never contains
// sentinel markers.
func ExtractToolUsage(text string) (*models.MToolUsage, string) {
	var usage *models.MToolUsage

	for {
		start := strings.Index(text, ToolsStartMarker)
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], ToolsEndMarker)
		if end < 0 {
			break
		}
		end += start

		payload := text[start+len(ToolsStartMarker) : end]
		text = text[:start] + text[end+len(ToolsEndMarker):]

		if usage != nil {
			continue
		}

		var parsed models.MToolUsage
		if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
			usage = &parsed
		}
	}

	return usage, text
}

// -----------------------------------------------------------------------------

// WrapToolUsage renders usage as a sentinel-wrapped inline fragment, the
// exact form the extraction above undoes.
func WrapToolUsage(usage models.MToolUsage) (string, error) {
	payload, err := json.Marshal(usage)
	if err != nil {
		return "", err
	}
	return ToolsStartMarker + string(payload) + ToolsEndMarker, nil
}
