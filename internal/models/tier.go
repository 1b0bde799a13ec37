package models

// Access tiers. Higher is more privileged. Guests sit in [TierGuestMin,
// TierGuestMax]; members start at TierMember. Team managers hold the top
// reserved tier and are excluded from attendance accounting entirely.
const (
	TierUnregistered = 0
	TierPending      = 1
	TierGuestMin     = 2
	TierGuestMax     = 3
	TierMember       = 4
	TierCore         = 5
	TierAdmin        = 6
	TierTeamManager  = 7
)

// BotAccessFloor is the bot-wide gate: below it a user may not use any
// command beyond registration.
const BotAccessFloor = TierGuestMin

// AccessLevel is one row of the access_levels lookup table.
type AccessLevel struct {
	Tier  int
	Label string
}

func IsGuestTier(tier int) bool {
	return tier >= TierGuestMin && tier <= TierGuestMax
}
