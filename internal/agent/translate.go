package agent

import (
	"maps"

	"pokeagent/internal/store"
	"pokeagent/pkg/models"
)

// Translate turns a buffered outcome into store points. Every successful
// scheme yields a status point then a latency point, stamped with the
// outcome's timestamp. Failed schemes yield nothing.
func Translate(o BufferedOutcome) []store.Point {
	points := make([]store.Point, 0, 2*len(o.Outcomes))

	status := pointLabels(o.Request.Labels, o.Request.Checks.Status)
	latency := pointLabels(o.Request.Labels, o.Request.Checks.Latency)

	for _, out := range o.Outcomes {
		if !out.OK() {
			continue
		}

		points = append(points,
			store.Point{
				Timestamp: o.Timestamp,
				ClassName: o.Request.Checks.Status.ClassName,
				Labels:    status,
				Value:     int64(out.Result.StatusCode),
			},
			store.Point{
				Timestamp: o.Timestamp,
				ClassName: o.Request.Checks.Latency.ClassName,
				Labels:    latency,
				Value:     out.Result.LatencyMillis(),
			},
		)
	}

	return points
}

// pointLabels overlays the check's labels on the request's; the check wins.
func pointLabels(base map[string]string, cs models.CheckSpec) []store.Label {
	merged := make(map[string]string, len(base)+len(cs.Labels))
	maps.Copy(merged, base)
	maps.Copy(merged, cs.Labels)
	return store.NewLabels(merged)
}
