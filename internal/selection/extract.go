package selection

import "log"

// Event is a normalized selection.
type Event struct {
	// Identifier is the correlation id for external data rows; empty when no
	// usable identifier was found.
	Identifier  string
	DisplayName string
	RawObjectID string
}

// identifierFields is the extraction priority chain: global identifier,
// secondary tag, readable name, type classification.
var identifierFields = []string{"GlobalId", "Tag", "Name", "ObjectType"}

// minUsableIDLength gates the last-resort fallback: an internal object id
// only counts as a real identifier when it is long enough to be one.
const minUsableIDLength = 10

// Extract normalizes whatever raw payload discovery produced. The priority
// chain runs against the payload's nested raw model data first, then against
// its top-level fields. Extraction never fails: panics are absorbed and
// reported as an empty identifier.
func Extract(payload any) (event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[speckle-viewer-bridge] identifier extraction failed: %v", r)
			event = Event{}
		}
	}()

	obj := normalize(payload)
	if obj == nil {
		return Event{}
	}

	event.RawObjectID = stringField(obj, "id")
	event.DisplayName = displayName(obj)
	event.Identifier = identifier(obj, event.RawObjectID)
	return event
}

// normalize unwraps list-shaped payloads to their first object.
func normalize(payload any) map[string]any {
	switch v := payload.(type) {
	case map[string]any:
		return v
	case []any:
		if len(v) == 0 {
			return nil
		}
		return normalize(v[0])
	default:
		return nil
	}
}

// rawData returns the payload's nested raw model data substructure, if any.
func rawData(obj map[string]any) map[string]any {
	for _, key := range []string{"rawData", "raw", "model"} {
		if nested, ok := obj[key].(map[string]any); ok {
			return nested
		}
	}
	return nil
}

// identifier runs the priority chain over the nested raw data first, then the
// top-level fields, then falls back to a long-enough object id.
func identifier(obj map[string]any, objectID string) string {
	if nested := rawData(obj); nested != nil {
		if id := chainMatch(nested); id != "" {
			return id
		}
	}
	if id := chainMatch(obj); id != "" {
		return id
	}
	if len(objectID) > minUsableIDLength {
		return objectID
	}
	return ""
}

func chainMatch(obj map[string]any) string {
	for _, field := range identifierFields {
		if v := stringField(obj, field); v != "" {
			return v
		}
	}
	return ""
}

// displayName prefers the nested raw data's name, then the top level's, then
// the type classification.
func displayName(obj map[string]any) string {
	if nested := rawData(obj); nested != nil {
		if name := stringField(nested, "Name"); name != "" {
			return name
		}
	}
	if name := stringField(obj, "Name"); name != "" {
		return name
	}
	if t := stringField(obj, "ObjectType"); t != "" {
		return t
	}
	return "Object"
}

func stringField(obj map[string]any, field string) string {
	v, _ := obj[field].(string)
	return v
}
