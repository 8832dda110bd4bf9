package domain

// EvidenceRef is an opaque blob reference issued by the evidence store.
type EvidenceRef string

// EvidenceSlot names a logical attachment list on an issue.
type EvidenceSlot string

const (
	SlotBefore EvidenceSlot = "before"
	SlotAfter  EvidenceSlot = "after"
)

// EvidenceSlots is the ordered set of slots an issue carries.
var EvidenceSlots = []EvidenceSlot{SlotBefore, SlotAfter}

// ParseEvidenceSlot accepts the slot name or its form field alias.
func ParseEvidenceSlot(s string) (EvidenceSlot, bool) {
	switch s {
	case "before", "evidencesBefore":
		return SlotBefore, true
	case "after", "evidencesAfter":
		return SlotAfter, true
	}
	return "", false
}

// Evidence returns the reference list for slot.
func (i *Issue) Evidence(slot EvidenceSlot) []EvidenceRef {
	switch slot {
	case SlotBefore:
		return i.EvidenceBefore
	case SlotAfter:
		return i.EvidenceAfter
	}
	return nil
}

// SetEvidence replaces the reference list for slot.
func (i *Issue) SetEvidence(slot EvidenceSlot, refs []EvidenceRef) {
	switch slot {
	case SlotBefore:
		i.EvidenceBefore = refs
	case SlotAfter:
		i.EvidenceAfter = refs
	}
}

// AllEvidence lists every reference across slots in slot order.
func (i *Issue) AllEvidence() []EvidenceRef {
	var refs []EvidenceRef
	for _, slot := range EvidenceSlots {
		refs = append(refs, i.Evidence(slot)...)
	}
	return refs
}
