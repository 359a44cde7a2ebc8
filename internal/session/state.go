package session

// State is the vault session state.
type State int

const (
	Unauthenticated State = iota
	IdentityVerified
	VaultLocked
	VaultUnlocked
	DecoyUnlocked
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case IdentityVerified:
		return "IDENTITY_VERIFIED"
	case VaultLocked:
		return "VAULT_LOCKED"
	case VaultUnlocked:
		return "VAULT_UNLOCKED"
	case DecoyUnlocked:
		return "DECOY_UNLOCKED"
	default:
		return "UNKNOWN"
	}
}

// unlocked reports whether a key is held in this state.
func (s State) unlocked() bool {
	return s == VaultUnlocked || s == DecoyUnlocked
}

// LockReason records why an unlocked session was locked.
type LockReason string

const (
	LockExplicit   LockReason = "explicit"
	LockBackground LockReason = "background"
	LockIdle       LockReason = "idle"
)
