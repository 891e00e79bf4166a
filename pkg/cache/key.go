package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operation names used as key prefixes.
const (
	OpFlow      = "traffic_flow"
	OpIncidents = "traffic_incidents"
	OpRoute     = "traffic_route"
)

// Key identifies one cached operation result. Parameter values are rendered
// verbatim, so callers must canonicalize numeric values (see FormatCoord)
// before building a key; float formatting drift would fragment the cache.
type Key struct {
	// Operation is the logical operation name (e.g. "traffic_flow").
	Operation string

	// Params maps parameter names to canonicalized values.
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: operation:name1:value1:name2:value2 with names sorted
// lexicographically, so the supply order of parameters never matters.
//
// Example:
//
//	traffic_flow:lat:52.5200070:lng:13.4049540:radius:1000
func (k Key) String() string {
	parts := []string{k.Operation}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%s", name, k.Params[name]))
	}

	return strings.Join(parts, ":")
}

// FlowKey builds the key for a flow lookup at a point with a search radius.
func FlowKey(lat, lng float64, radius int) Key {
	return Key{
		Operation: OpFlow,
		Params: map[string]string{
			"lat":    FormatCoord(lat),
			"lng":    FormatCoord(lng),
			"radius": strconv.Itoa(radius),
		},
	}
}

// IncidentsKey builds the key for an incidents lookup over a circular area.
func IncidentsKey(lat, lng float64, radius int) Key {
	return Key{
		Operation: OpIncidents,
		Params: map[string]string{
			"lat":    FormatCoord(lat),
			"lng":    FormatCoord(lng),
			"radius": strconv.Itoa(radius),
		},
	}
}

// FormatCoord renders a coordinate with fixed 7-decimal precision (roughly
// 1cm resolution). All key construction goes through this so that 13.4 and
// 13.40 produce the same key.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
