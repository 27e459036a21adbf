package slots

import (
	"fmt"
	"sort"
	"strconv"

	"solperf/internal/pkg/utils"
)

// Milestone is a slotsUpdatesNotification type, or MilestoneSlot for the
// plain slotSubscribe feed.
type Milestone string

const (
	MilestoneFirstShred  Milestone = "firstShredReceived"
	MilestoneCreatedBank Milestone = "createdBank"
	MilestoneCompleted   Milestone = "completed"
	MilestoneOptimistic  Milestone = "optimisticConfirmation"
	MilestoneRoot        Milestone = "root"
	MilestoneFrozen      Milestone = "frozen"
	MilestoneDead        Milestone = "dead"
	MilestoneSlot        Milestone = "slot"
)

// DefaultMilestone is raced when no milestone is configured.
const DefaultMilestone = MilestoneCreatedBank

var milestoneSlugs = map[Milestone]string{
	MilestoneFirstShred:  "first-shred-received",
	MilestoneCreatedBank: "create-bank",
	MilestoneCompleted:   "completed",
	MilestoneOptimistic:  "optimistic-confirmation",
	MilestoneRoot:        "root",
	MilestoneFrozen:      "frozen",
	MilestoneDead:        "dead",
}

// SlotKey is the key for a bare slot number. gRPC slot updates and
// slotSubscribe notifications use it, so those two transports can be raced
// against each other.
func SlotKey(slot uint64) string {
	return strconv.FormatUint(slot, 10)
}

// MilestoneKey is the key for a slot lifecycle notification, e.g.
// "287301552-create-bank". Different milestones of one slot never collide.
func MilestoneKey(slot uint64, m Milestone) string {
	if m == MilestoneSlot {
		return SlotKey(slot)
	}
	slug, ok := milestoneSlugs[m]
	if !ok {
		slug = string(m)
	}
	return fmt.Sprintf("%d-%s", slot, slug)
}

// ParseMilestones validates a comma separated milestone list. "slot" cannot
// be combined with lifecycle milestones because it needs a different
// subscription.
func ParseMilestones(list string) (utils.HashSet[Milestone], error) {
	names := utils.ParseList(list)
	if names.Empty() {
		return utils.NewHashSet(DefaultMilestone), nil
	}

	set := utils.NewHashSet[Milestone]()
	for n := range names {
		m := Milestone(n)
		if _, ok := milestoneSlugs[m]; !ok && m != MilestoneSlot {
			return nil, fmt.Errorf("unknown websocket milestone %q", n)
		}
		set.Add(m)
	}

	if set.Contains(MilestoneSlot) && len(set) > 1 {
		return nil, fmt.Errorf("milestone %q cannot be combined with %v", MilestoneSlot, sorted(set))
	}
	return set, nil
}

func sorted(set utils.HashSet[Milestone]) []string {
	out := make([]string, 0, len(set))
	for m := range set {
		if m != MilestoneSlot {
			out = append(out, string(m))
		}
	}
	sort.Strings(out)
	return out
}
