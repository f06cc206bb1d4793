package domain

// SubjectType differentiates who initiated an operation.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeStaff  SubjectType = "STAFF"
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// systemActorID is the fixed identity automated transitions run under.
const systemActorID = "system"

// Actor identifies the initiator of a transition or acknowledgement.
// Automated transitions flow through the same APIs as human ones, carrying
// the system actor instead of a magic string.
type Actor struct {
	Type SubjectType
	ID   string
}

// SystemActor returns the distinguished actor for automated transitions.
func SystemActor() Actor {
	return Actor{Type: SubjectTypeSystem, ID: systemActorID}
}

// IsSystem reports whether the actor is the automated system identity.
func (a Actor) IsSystem() bool {
	return a.Type == SubjectTypeSystem
}
