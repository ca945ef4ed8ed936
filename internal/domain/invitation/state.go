package invitation

// transitions enumerates the permitted lifecycle edges. submitted,
// expired and revoked are terminal.
var transitions = map[Status][]Status{
	StatusSent:     {StatusAccepted, StatusStarted, StatusExpired, StatusRevoked},
	StatusAccepted: {StatusStarted, StatusExpired, StatusRevoked},
	StatusStarted:  {StatusSubmitted, StatusExpired, StatusRevoked},
}

// CanTransition reports whether the edge from -> to is permitted
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the invitation
func (i *Invitation) Transition(to Status) error {
	if !CanTransition(i.Status, to) {
		return ErrInvalidTransition
	}
	i.Status = to
	return nil
}
