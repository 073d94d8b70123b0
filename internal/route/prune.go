package route

import "github.com/skyloop/skyloop/internal/graph"

// reachableAirports returns the airports within maxHops flights of any of
// the source airports, treating legs as undirected. The search never needs
// to leave this set: any route through an airport further away cannot come
// back through a required city. Returns nil (no restriction) when pruning is
// disabled.
func reachableAirports(g *graph.Graph, sources []string, maxHops int) map[string]struct{} {
	if maxHops < 0 {
		return nil
	}

	reachable := make(map[string]struct{}, len(sources))
	frontier := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		reachable[s] = struct{}{}
		frontier[s] = struct{}{}
	}

	store := g.Records()
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		next := make(map[string]struct{})
		for i := 0; i < store.Len(); i++ {
			rec := store.At(i)
			_, depIn := frontier[rec.DepartureAirport]
			_, arrIn := frontier[rec.ArrivalAirport]
			if !depIn && !arrIn {
				continue
			}
			for _, code := range [2]string{rec.DepartureAirport, rec.ArrivalAirport} {
				if _, seen := reachable[code]; !seen {
					reachable[code] = struct{}{}
					next[code] = struct{}{}
				}
			}
		}
		frontier = next
	}

	return reachable
}
