package speckle

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	serverPattern  = regexp.MustCompile(`^(https?://[^/]+)`)
	projectPattern = regexp.MustCompile(`/projects/([a-f0-9]+)/models/([a-f0-9,]+)`)
	streamPattern  = regexp.MustCompile(`/streams/([a-f0-9]+)`)
)

// Ref is a parsed Speckle model URL. Either ProjectID+ModelIDs (current URL
// format) or StreamID (legacy format) is set.
type Ref struct {
	Server    string
	ProjectID string
	ModelIDs  []string
	StreamID  string
}

// StreamKey returns the id used for object storage paths: the project id for
// current URLs, the stream id for legacy ones.
func (r Ref) StreamKey() string {
	if r.ProjectID != "" {
		return r.ProjectID
	}
	return r.StreamID
}

// ParseURL parses a Speckle model URL. The model segment of a project URL may
// list several models separated by commas.
func ParseURL(raw string) (Ref, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")

	server := serverPattern.FindString(raw)
	if server == "" {
		return Ref{}, fmt.Errorf("unsupported model URL %q: missing http(s) server", raw)
	}

	if m := projectPattern.FindStringSubmatch(raw); m != nil {
		var models []string
		for _, id := range strings.Split(m[2], ",") {
			if id = strings.TrimSpace(id); id != "" {
				models = append(models, id)
			}
		}
		if len(models) == 0 {
			return Ref{}, fmt.Errorf("unsupported model URL %q: empty model list", raw)
		}
		return Ref{Server: server, ProjectID: m[1], ModelIDs: models}, nil
	}

	if m := streamPattern.FindStringSubmatch(raw); m != nil {
		return Ref{Server: server, StreamID: m[1]}, nil
	}

	return Ref{}, fmt.Errorf("unsupported model URL %q", raw)
}
