package conversation

// RouteKind says how an incoming text should be handled.
type RouteKind int

const (
	// RouteCapture is a new idea.
	RouteCapture RouteKind = iota
	// RouteEditDraft replaced the unsaved draft's text; re-show the prompt.
	RouteEditDraft
	// RouteEditIdea is replacement text for a saved idea.
	RouteEditIdea
	// RouteSearch is a search query.
	RouteSearch
	// RouteQuery is a '?' question that is answered but never stored.
	RouteQuery
	// RouteDropped is ignored without a reply.
	RouteDropped
)

func (k RouteKind) String() string {
	switch k {
	case RouteCapture:
		return "capture"
	case RouteEditDraft:
		return "edit_draft"
	case RouteEditIdea:
		return "edit_idea"
	case RouteSearch:
		return "search"
	case RouteQuery:
		return "query"
	case RouteDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// QueryPrefix marks a text as a question rather than an idea.
const QueryPrefix = "?"

// Route is the decision for one incoming text.
type Route struct {
	Kind RouteKind
	Text string

	// IdeaID is set for RouteEditIdea.
	IdeaID string
	// Draft is set for RouteEditDraft.
	Draft *Draft
	// PromptRef is the prompt message the pending operation was waiting on.
	PromptRef int64
	// ConfirmMode is the user's preference at routing time, for RouteCapture.
	ConfirmMode bool
}
