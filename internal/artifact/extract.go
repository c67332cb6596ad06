// Package artifact turns fenced code blocks in model output into artifacts.
package artifact

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

const fence = "```"

// Reference returns the inline token that replaces an extracted block.
func Reference(id string) string {
	return fmt.Sprintf("[Code artifact: %s]", id)
}

// Extractor splits model output into narrative text and artifacts. It has
// no side effects beyond calling its id generator.
type Extractor struct {
	newID func() string
}

// New returns an Extractor that assigns uuid ids.
func New() *Extractor {
	return &Extractor{newID: func() string { return uuid.NewString() }}
}

// NewWithIDGenerator returns an Extractor using newID for artifact ids.
func NewWithIDGenerator(newID func() string) *Extractor {
	return &Extractor{newID: newID}
}

var defaultExtractor = New()

// Extract runs the default extractor.
func Extract(raw string) (string, []model.Artifact) {
	return defaultExtractor.Extract(raw)
}

// Extract splits raw on triple backticks. Even-indexed segments are prose,
// odd-indexed segments are fenced blocks which become artifacts and are
// replaced by a reference token. A trailing fence without a closing marker
// is left in the narrative as written.
func (e *Extractor) Extract(raw string) (string, []model.Artifact) {
	segments := strings.Split(raw, fence)
	if len(segments) == 1 {
		return raw, nil
	}

	// An even segment count means the last fence was never closed.
	unterminated := len(segments)%2 == 0

	var artifacts []model.Artifact
	for i := 1; i < len(segments); i += 2 {
		if unterminated && i == len(segments)-1 {
			segments[i] = fence + segments[i]
			break
		}

		language, body := splitFence(segments[i])
		a := model.Artifact{
			ID:       e.newID(),
			Title:    title(language),
			Type:     model.ArtifactTypeCode,
			Content:  body,
			Language: language,
		}
		artifacts = append(artifacts, a)
		segments[i] = Reference(a.ID)
	}

	return strings.Join(segments, ""), artifacts
}

// splitFence separates an optional language hint on the opening line from
// the block body. Indentation of the first code line is preserved.
func splitFence(segment string) (language, body string) {
	body = segment
	if idx := strings.IndexByte(segment, '\n'); idx >= 0 {
		language = strings.TrimSpace(segment[:idx])
		body = segment[idx+1:]
	} else {
		body = strings.TrimSpace(segment)
	}
	body = strings.TrimLeft(body, "\r\n")
	body = strings.TrimRight(body, " \t\r\n")
	return language, body
}

func title(language string) string {
	if language == "" {
		return "Code snippet"
	}
	return fmt.Sprintf("Code snippet (%s)", language)
}
