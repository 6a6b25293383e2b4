package check

type Event int

const (
	EventDocument Event = iota
	EventNode
	EventTag
	EventAfterTag
	EventVariable
	EventElement
	EventAfterNode
	EventAfterDocument
)

var eventNames = map[Event]string{
	EventDocument:      "on_document",
	EventNode:          "on_node",
	EventTag:           "on_tag",
	EventAfterTag:      "after_tag",
	EventVariable:      "on_variable",
	EventElement:       "on_element",
	EventAfterNode:     "after_node",
	EventAfterDocument: "after_document",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}
