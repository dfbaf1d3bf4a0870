package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Tags map[string]string

// Counter is what components take as a handle; the concrete Registry is
// wired in by the container and read by the ops endpoint and tests.
type Counter interface {
	Incr(name string, tags Tags)
}

type Registry struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewRegistry() *Registry {
	return &Registry{
		counts: make(map[string]int64),
	}
}

func (r *Registry) Incr(name string, tags Tags) {
	key := encode(name, tags)

	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()
}

// Snapshot copies the current counts, keyed by the encoded series name.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Count sums every series for name across all tag combinations.
func (r *Registry) Count(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for k, v := range r.counts {
		if k == name || strings.HasPrefix(k, name+"{") {
			total += v
		}
	}
	return total
}

// Tag order must not produce distinct series, so keys are encoded with
// sorted tag names.
func encode(name string, tags Tags) string {
	if len(tags) == 0 {
		return name
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%s=%s", k, tags[k])
	}
	sb.WriteString("}")
	return sb.String()
}
