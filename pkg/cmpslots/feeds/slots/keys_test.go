package slots

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "287301552", SlotKey(287301552))
	assert.Equal(t, "100-create-bank", MilestoneKey(100, MilestoneCreatedBank))
	assert.Equal(t, "100-first-shred-received", MilestoneKey(100, MilestoneFirstShred))
	assert.Equal(t, "100-optimistic-confirmation", MilestoneKey(100, MilestoneOptimistic))
	assert.Equal(t, "100", MilestoneKey(100, MilestoneSlot))
	assert.NotEqual(t, MilestoneKey(7, MilestoneCompleted), MilestoneKey(7, MilestoneCreatedBank))
}

func TestParseMilestones(t *testing.T) {
	set, err := ParseMilestones("")
	require.NoError(t, err)
	assert.True(t, set.Contains(DefaultMilestone))
	assert.Len(t, set, 1)

	set, err = ParseMilestones("createdBank,completed")
	require.NoError(t, err)
	assert.True(t, set.Contains(MilestoneCreatedBank))
	assert.True(t, set.Contains(MilestoneCompleted))

	set, err = ParseMilestones("slot")
	require.NoError(t, err)
	assert.True(t, set.Contains(MilestoneSlot))

	_, err = ParseMilestones("slot,root")
	require.Error(t, err)

	_, err = ParseMilestones("bankCreated")
	require.Error(t, err)
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad url")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))

	err := fmt.Errorf("dial: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
}
