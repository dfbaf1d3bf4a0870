package findings

import (
	"fmt"
	"strings"
)

// InstanceID identifies one compared entity instance by model name and
// the ordinal it appeared at in the input.
type InstanceID struct {
	Model   string
	Ordinal int
}

func (id InstanceID) Pretty() string {
	out := fmt.Sprintf("InstanceID(model: %q", id.Model)
	if id.Ordinal != 0 {
		out += fmt.Sprintf(", ordinal: %d", id.Ordinal)
	}
	return out + ")"
}

type Kind int

const (
	KindUnknown Kind = iota

	// Instances of a model did not keep total ordering of pks.
	UnorderedInput

	// Left and right side did not contain the same number of instances
	// of a model.
	UnequalCounts

	// The scrubbed JSON of two instances was not byte-for-byte equal.
	UnequalJSON

	// Two datetime fields were not equal.
	DatetimeEquality

	// A datetime comparison could not run because a field was absent.
	DatetimeEqualityExistenceCheck

	// The right side's datetime was not newer than the left side's.
	DateUpdated

	// A date-updated comparison could not run because a field was absent.
	DateUpdatedExistenceCheck
)

var kindNames = map[Kind]string{
	UnorderedInput:                 "UnorderedInput",
	UnequalCounts:                  "UnequalCounts",
	UnequalJSON:                    "UnequalJSON",
	DatetimeEquality:               "DatetimeEquality",
	DatetimeEqualityExistenceCheck: "DatetimeEqualityExistenceCheck",
	DateUpdated:                    "DateUpdated",
	DateUpdatedExistenceCheck:      "DateUpdatedExistenceCheck",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Finding records a single failed match between the left and right side
// of a comparison. Immutable once appended.
type Finding struct {
	Kind    Kind
	On      InstanceID
	LeftPK  int64
	RightPK int64
	Reason  string
}

func (f Finding) Pretty() string {
	out := fmt.Sprintf("Finding(\n\tkind: %s,\n\ton: %s", f.Kind, f.On.Pretty())
	if f.LeftPK != 0 {
		out += fmt.Sprintf(",\n\tleft_pk: %d", f.LeftPK)
	}
	if f.RightPK != 0 {
		out += fmt.Sprintf(",\n\tright_pk: %d", f.RightPK)
	}
	if f.Reason != "" {
		out += fmt.Sprintf(",\n\treason: %s", f.Reason)
	}
	return out + "\n)"
}

// Findings is an append-only ordered sequence of Finding. Append order
// is report order: no dedup, no sort. Single writer per comparison pass.
type Findings struct {
	items []Finding
}

func New(items ...Finding) *Findings {
	return &Findings{items: items}
}

func (fs *Findings) Append(f Finding) {
	fs.items = append(fs.items, f)
}

func (fs *Findings) Extend(other *Findings) {
	fs.items = append(fs.items, other.items...)
}

func (fs *Findings) Empty() bool {
	return len(fs.items) == 0
}

func (fs *Findings) All() []Finding {
	return fs.items
}

func (fs *Findings) Pretty() string {
	parts := make([]string, 0, len(fs.items))
	for _, f := range fs.items {
		parts = append(parts, f.Pretty())
	}
	return strings.Join(parts, "\n")
}
