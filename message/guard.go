package message

import "fmt"

// GuardLevel is the paid subscription tier, numbered the way the platform does
type GuardLevel uint8

const (
	GuardGovernor  = GuardLevel(1) // 总督
	GuardCommander = GuardLevel(2) // 提督
	GuardCaptain   = GuardLevel(3) // 舰长
)

// ParseGuardLevel only accepts the three known tiers, 0 included as an error
func ParseGuardLevel(v uint64) (GuardLevel, error) {
	if v < uint64(GuardGovernor) || v > uint64(GuardCaptain) {
		return 0, fmt.Errorf("unknown guard level %d", v)
	}
	return GuardLevel(v), nil
}

// optionalGuard maps anything outside the known tiers to no guard
func optionalGuard(v uint64) *GuardLevel {
	level, err := ParseGuardLevel(v)
	if err != nil {
		return nil
	}
	return &level
}

func (g GuardLevel) String() string {
	switch g {
	case GuardGovernor:
		return "governor"
	case GuardCommander:
		return "commander"
	case GuardCaptain:
		return "captain"
	}
	return fmt.Sprintf("guard(%d)", uint8(g))
}

type InteractType uint8

const (
	InteractEnter         = InteractType(1)
	InteractFollow        = InteractType(2)
	InteractShare         = InteractType(3)
	InteractSpecialFollow = InteractType(4)
	InteractMutualFollow  = InteractType(5)
)

func ParseInteractType(v uint64) (InteractType, error) {
	if v < uint64(InteractEnter) || v > uint64(InteractMutualFollow) {
		return 0, fmt.Errorf("unknown interact type %d", v)
	}
	return InteractType(v), nil
}

func (t InteractType) String() string {
	switch t {
	case InteractEnter:
		return "enter"
	case InteractFollow:
		return "follow"
	case InteractShare:
		return "share"
	case InteractSpecialFollow:
		return "special_follow"
	case InteractMutualFollow:
		return "mutual_follow"
	}
	return fmt.Sprintf("interact(%d)", uint8(t))
}
