package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingsAppendKeepsOrder(t *testing.T) {
	fs := New()
	require.True(t, fs.Empty())

	fs.Append(Finding{Kind: UnequalCounts, On: InstanceID{Model: "monitor"}, Reason: "left 2 right 3"})
	fs.Append(Finding{Kind: UnorderedInput, On: InstanceID{Model: "checkin", Ordinal: 4}})
	fs.Append(Finding{Kind: UnequalCounts, On: InstanceID{Model: "monitor"}, Reason: "left 2 right 3"})

	require.False(t, fs.Empty())
	require.Len(t, fs.All(), 3)

	// duplicates survive, order is append order
	assert.Equal(t, UnequalCounts, fs.All()[0].Kind)
	assert.Equal(t, UnorderedInput, fs.All()[1].Kind)
	assert.Equal(t, fs.All()[0], fs.All()[2])
}

func TestFindingsExtend(t *testing.T) {
	left := New(Finding{Kind: UnequalJSON, On: InstanceID{Model: "monitor", Ordinal: 1}})
	right := New(
		Finding{Kind: DateUpdated, On: InstanceID{Model: "monitor", Ordinal: 1}, LeftPK: 10, RightPK: 11},
		Finding{Kind: DateUpdatedExistenceCheck, On: InstanceID{Model: "monitor", Ordinal: 2}},
	)

	left.Extend(right)

	require.Len(t, left.All(), 3)
	assert.Equal(t, UnequalJSON, left.All()[0].Kind)
	assert.Equal(t, DateUpdated, left.All()[1].Kind)
}

func TestFindingPretty(t *testing.T) {
	f := Finding{
		Kind:    DatetimeEquality,
		On:      InstanceID{Model: "monitor", Ordinal: 2},
		LeftPK:  7,
		RightPK: 9,
		Reason:  "date_added mismatch",
	}

	out := f.Pretty()
	assert.Contains(t, out, "kind: DatetimeEquality")
	assert.Contains(t, out, `InstanceID(model: "monitor", ordinal: 2)`)
	assert.Contains(t, out, "left_pk: 7")
	assert.Contains(t, out, "right_pk: 9")
	assert.Contains(t, out, "reason: date_added mismatch")

	// zero ordinal and pks are omitted entirely
	bare := Finding{Kind: UnequalCounts, On: InstanceID{Model: "checkin"}}.Pretty()
	assert.NotContains(t, bare, "ordinal")
	assert.NotContains(t, bare, "left_pk")
}

func TestFindingsPrettyJoinsLines(t *testing.T) {
	fs := New(
		Finding{Kind: UnequalCounts, On: InstanceID{Model: "a"}},
		Finding{Kind: UnequalJSON, On: InstanceID{Model: "b"}},
	)

	out := fs.Pretty()
	assert.Contains(t, out, "UnequalCounts")
	assert.Contains(t, out, "UnequalJSON")
	assert.Equal(t, "", New().Pretty())
}
