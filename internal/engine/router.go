package engine

// Route is the outcome of the termination router.
type Route string

const (
	RouteExplore           Route = "explore"
	RouteSufficientContext Route = "sufficient_context"
	RouteMaxExplorations   Route = "max_explorations"
)

// Finalizes reports whether the route ends exploration.
func (r Route) Finalizes() bool {
	return r != RouteExplore
}

// NextRoute picks the next branch after a decision step. Checks run in order:
// empty queue, round cap, file cap. Both caps share one route.
func NextRoute(st *State, limits Limits) Route {
	switch {
	case len(st.Pending) == 0:
		return RouteSufficientContext
	case st.ExplorationCounter >= limits.MaxExplorationCounter:
		return RouteMaxExplorations
	case st.NumExplorations >= limits.MaxExplorations:
		return RouteMaxExplorations
	default:
		return RouteExplore
	}
}
