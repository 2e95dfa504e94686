package model

import "time"

// IdentityID uniquely identifies a canonical player identity.
// IDs are never reused, even after soft deletion.
type IdentityID string

// UserID references a registered user account
type UserID string

// IdentityKind categorizes how an identity came to exist
type IdentityKind string

const (
	// KindUser is an identity owned by a registered account
	KindUser IdentityKind = "user"
	// KindGuest is an unclaimed identity created from a display name sighting
	KindGuest IdentityKind = "guest"
	// KindImported is a guest identity that has been linked into a user
	// identity; it is kept around so the link can be reversed
	KindImported IdentityKind = "imported"
)

// IdentityStatus is the lifecycle state of an identity. Exactly one state
// applies at a time; MergedInto is set iff the status is linked or merged.
type IdentityStatus string

const (
	// StatusActive identities participate in name resolution
	StatusActive IdentityStatus = "active"
	// StatusLinked identities have been reversibly folded into a user
	// identity (guest -> user conversion)
	StatusLinked IdentityStatus = "linked"
	// StatusMerged identities have been permanently folded into another
	// identity; terminal for new writes, retained for history
	StatusMerged IdentityStatus = "merged"
	// StatusDeleted identities are soft-deleted; excluded from lookup and
	// uniqueness checks but retained for referential integrity
	StatusDeleted IdentityStatus = "deleted"
)

// Alias is an alternate name mapped to an identity
type Alias struct {
	Name           string
	NormalizedName string
	AddedAt        time.Time
	AddedBy        string
}

// NameChange is an append-only audit record of a prior display name
type NameChange struct {
	Name           string
	NormalizedName string
	ChangedAt      time.Time
	ChangedBy      string
}

// LinkedIdentity records a guest identity absorbed into this one,
// keeping enough information to reverse the link
type LinkedIdentity struct {
	IdentityID          IdentityID
	LinkedAt            time.Time
	LinkedBy            string
	OriginalDisplayName string
}

// IdentityStats holds cached aggregate counters derived from game records.
// They are recomputable and never the source of truth.
type IdentityStats struct {
	TotalGames int
	TotalWins  int
	LastGameAt *time.Time
}

// Identity is the canonical record representing one real player across
// guest sessions and registered accounts
type Identity struct {
	ID             IdentityID
	DisplayName    string
	NormalizedName string
	UserID         UserID // empty for guest/imported identities
	Kind           IdentityKind
	Status         IdentityStatus
	MergedInto     IdentityID // set iff Status is linked or merged

	Aliases          []Alias
	NameHistory      []NameChange
	LinkedIdentities []LinkedIdentity

	Stats IdentityStats

	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsActive reports whether the identity participates in name resolution
// and uniqueness checks
func (i *Identity) IsActive() bool {
	return i.Status == StatusActive
}

// OwnsName reports whether the identity's own normalized name or one of
// its alias normalized names equals the given normalized name
func (i *Identity) OwnsName(normalized string) bool {
	if i.NormalizedName == normalized {
		return true
	}
	return i.HasAlias(normalized)
}

// HasAlias reports whether the identity has an alias with the given
// normalized name
func (i *Identity) HasAlias(normalized string) bool {
	for _, a := range i.Aliases {
		if a.NormalizedName == normalized {
			return true
		}
	}
	return false
}

// HadName reports whether the identity previously used the given
// normalized name, per its name history
func (i *Identity) HadName(normalized string) bool {
	for _, h := range i.NameHistory {
		if h.NormalizedName == normalized {
			return true
		}
	}
	return false
}

// AllNormalizedNames returns the identity's own normalized name plus every
// alias normalized name
func (i *Identity) AllNormalizedNames() []string {
	names := make([]string, 0, len(i.Aliases)+1)
	names = append(names, i.NormalizedName)
	for _, a := range i.Aliases {
		names = append(names, a.NormalizedName)
	}
	return names
}

// FindLinkedIdentity returns the linked-identity entry for the given guest
// identity, or nil if none exists
func (i *Identity) FindLinkedIdentity(guestID IdentityID) *LinkedIdentity {
	for idx := range i.LinkedIdentities {
		if i.LinkedIdentities[idx].IdentityID == guestID {
			return &i.LinkedIdentities[idx]
		}
	}
	return nil
}

// RemoveLinkedIdentity removes the linked-identity entry for the given
// guest identity; it reports whether an entry was removed
func (i *Identity) RemoveLinkedIdentity(guestID IdentityID) bool {
	for idx, li := range i.LinkedIdentities {
		if li.IdentityID == guestID {
			i.LinkedIdentities = append(i.LinkedIdentities[:idx], i.LinkedIdentities[idx+1:]...)
			return true
		}
	}
	return false
}

// RemoveAlias removes the alias with the given normalized name; it reports
// whether an alias was removed
func (i *Identity) RemoveAlias(normalized string) bool {
	for idx, a := range i.Aliases {
		if a.NormalizedName == normalized {
			i.Aliases = append(i.Aliases[:idx], i.Aliases[idx+1:]...)
			return true
		}
	}
	return false
}
