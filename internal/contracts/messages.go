package contracts

// Source tags every outbound host message with the emitting component.
const Source = "speckle-viewer-bridge"

// Inbound message types (host -> bridge).
const (
	// MessageTypeURLUpdate asks the bridge to load a new model URL.
	MessageTypeURLUpdate = "URL_UPDATE"
	// MessageTypeFilterByID asks the bridge to isolate objects by identifier.
	MessageTypeFilterByID = "FILTER_BY_ID"
	// MessageTypeClearFilter asks the bridge to reset all filtering state.
	MessageTypeClearFilter = "CLEAR_FILTER"
)

// Inbound message types (embed page -> bridge).
const (
	// MessageTypePageClick carries a pointer click on the viewer container.
	MessageTypePageClick = "PAGE_CLICK"
	// MessageTypePageLoad announces the embed page loading, with its query model.
	MessageTypePageLoad = "PAGE_LOAD"
)

// Outbound message types (bridge -> host).
const (
	MessageTypeViewerReady    = "VIEWER_READY"
	MessageTypeViewerError    = "VIEWER_ERROR"
	MessageTypeObjectSelected = "OBJECT_SELECTED"
	MessageTypeFilterApplied  = "FILTER_APPLIED"
	MessageTypeFilterCleared  = "FILTER_CLEARED"
)

// MessageTypeStatus drives the embed page's loading/placeholder/error elements.
const MessageTypeStatus = "STATUS"

// Embed page status states.
const (
	StatusLoading = "loading"
	StatusLoaded  = "loaded"
	StatusError   = "error"
	StatusEmpty   = "empty"
)

// Envelope is the minimal shape used to route inbound messages.
type Envelope struct {
	Type string `json:"type"`
}

// URLUpdateMessage requests loading the given model URL.
type URLUpdateMessage struct {
	Type     string `json:"type"`
	ModelURL string `json:"modelUrl"`
}

// FilterByIDMessage requests isolating objects matching an identifier.
type FilterByIDMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PageClickMessage carries container-relative and page coordinates of a click.
type PageClickMessage struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	PageX float64 `json:"pageX"`
	PageY float64 `json:"pageY"`
}

// PageLoadMessage announces an embed page load and its optional query model.
type PageLoadMessage struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// ViewerReadyMessage reports a completed model load.
type ViewerReadyMessage struct {
	Type     string `json:"type"`
	Source   string `json:"source"`
	ModelURL string `json:"modelUrl"`
}

// ViewerErrorMessage reports a load or filter failure with a readable reason.
type ViewerErrorMessage struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// ObjectSelectedMessage republishes a normalized viewer selection.
type ObjectSelectedMessage struct {
	Type       string `json:"type"`
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	ObjectName string `json:"objectName"`
	ObjectID   string `json:"objectId"`
}

// FilterAppliedMessage reports the outcome of an isolate operation.
type FilterAppliedMessage struct {
	Type         string `json:"type"`
	Source       string `json:"source"`
	Identifier   string `json:"identifier"`
	VisibleCount int    `json:"visibleCount"`
	HiddenCount  int    `json:"hiddenCount"`
}

// FilterClearedMessage reports that all filtering state was reset.
type FilterClearedMessage struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

// StatusMessage drives the embed page UI state.
type StatusMessage struct {
	Type   string `json:"type"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// NewViewerReady builds a ready message for the given model URL.
func NewViewerReady(modelURL string) ViewerReadyMessage {
	return ViewerReadyMessage{Type: MessageTypeViewerReady, Source: Source, ModelURL: modelURL}
}

// NewViewerError builds an error message with a human-readable reason.
func NewViewerError(reason string) ViewerErrorMessage {
	return ViewerErrorMessage{Type: MessageTypeViewerError, Source: Source, Error: reason}
}

// NewObjectSelected builds a selection message. Identifier may be empty when
// extraction found nothing usable.
func NewObjectSelected(identifier, objectName, objectID string) ObjectSelectedMessage {
	return ObjectSelectedMessage{
		Type:       MessageTypeObjectSelected,
		Source:     Source,
		Identifier: identifier,
		ObjectName: objectName,
		ObjectID:   objectID,
	}
}

// NewFilterApplied builds a filter outcome message.
func NewFilterApplied(identifier string, visible, hidden int) FilterAppliedMessage {
	return FilterAppliedMessage{
		Type:         MessageTypeFilterApplied,
		Source:       Source,
		Identifier:   identifier,
		VisibleCount: visible,
		HiddenCount:  hidden,
	}
}

// NewFilterCleared builds a filter reset message.
func NewFilterCleared() FilterClearedMessage {
	return FilterClearedMessage{Type: MessageTypeFilterCleared, Source: Source}
}

// HostPublisher delivers outbound messages to the attached host, if any.
// Implementations should be lightweight and must not block; messages emitted
// while no host is attached are dropped.
type HostPublisher interface {
	Publish(v any)
}

// PageStatusSink delivers UI status updates to the embed page, if connected.
type PageStatusSink interface {
	Status(state, detail string)
}

// NopPublisher drops everything. It is the default wiring for standalone runs.
type NopPublisher struct{}

func (NopPublisher) Publish(any) {}

func (NopPublisher) Status(string, string) {}
