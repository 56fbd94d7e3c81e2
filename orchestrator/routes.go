package orchestrator

// Route is a routing decision label.
type Route string

const (
	RouteNeedsSearch        Route = "needs_search"
	RouteAnswerFinal        Route = "answer_final"
	RouteSearchGraph        Route = "search_graph"
	RouteSearchVector       Route = "search_vector"
	RouteGenerateSubqueries Route = "generate_subqueries"
)

// UnknownStep is the description of labels missing from the table.
const UnknownStep = "Unknown step"

var routeDescriptions = map[Route]string{
	RouteNeedsSearch:        "Looking for supporting documents",
	RouteSearchGraph:        "Querying graph relationships",
	RouteSearchVector:       "Querying semantic context",
	RouteGenerateSubqueries: "Generating new sub-queries",
	RouteAnswerFinal:        "Done! Generating final answer",
}

// Describe returns the progress text for a route.
func Describe(r Route) string {
	if d, ok := routeDescriptions[r]; ok {
		return d
	}
	return UnknownStep
}

func routeStrings(routes []Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = string(r)
	}
	return out
}
