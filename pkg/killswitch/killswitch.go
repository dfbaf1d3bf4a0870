package killswitch

// Evaluator answers whether a named operational switch is tripped for a
// given request context. Entries come from configuration; an entry with
// an empty context matches every request for its switch name.
type Entry struct {
	Name    string
	Context map[string]string
}

type Evaluator struct {
	entries []Entry
}

func NewEvaluator(entries []Entry) *Evaluator {
	return &Evaluator{entries: entries}
}

func (e *Evaluator) Matches(name string, ctx map[string]string) bool {
	for _, entry := range e.entries {
		if entry.Name != name {
			continue
		}
		if matchesContext(entry.Context, ctx) {
			return true
		}
	}
	return false
}

func matchesContext(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
