package dao

type Action string

const (
	ActionPropose Action = "propose"
	ActionVote    Action = "vote"
	ActionQueue   Action = "queue"
	ActionExecute Action = "execute"
)

// VoteSupport follows GovernorCountingSimple
type VoteSupport uint8

const (
	VoteAgainst VoteSupport = iota
	VoteFor
	VoteAbstain
)

func (v VoteSupport) String() string {
	switch v {
	case VoteAgainst:
		return "against"
	case VoteFor:
		return "for"
	case VoteAbstain:
		return "abstain"
	}

	return "unknown"
}

// VoteSupportFromString parses the support flag accepted by the cli
func VoteSupportFromString(s string) (VoteSupport, bool) {
	switch s {
	case "against", "0":
		return VoteAgainst, true
	case "for", "1":
		return VoteFor, true
	case "abstain", "2":
		return VoteAbstain, true
	}

	return 0, false
}
