package domain

import "time"

// Initiative records an improvement carried out at a station, with evidence
// taken before and after the work.
type Initiative struct {
	ID              int64
	Reporter        IdentityRef
	Week            int
	Date            time.Time
	Region          Region
	Station         string
	Type            IssueType
	Details         string
	AreaManager     string
	RegionalManager string
	EvidenceBefore  []EvidenceRef
	EvidenceAfter   []EvidenceRef
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy.
func (i *Initiative) Clone() *Initiative {
	cp := *i
	cp.EvidenceBefore = append([]EvidenceRef(nil), i.EvidenceBefore...)
	cp.EvidenceAfter = append([]EvidenceRef(nil), i.EvidenceAfter...)
	return &cp
}

func (i *Initiative) Evidence(slot EvidenceSlot) []EvidenceRef {
	switch slot {
	case SlotBefore:
		return i.EvidenceBefore
	case SlotAfter:
		return i.EvidenceAfter
	}
	return nil
}

func (i *Initiative) SetEvidence(slot EvidenceSlot, refs []EvidenceRef) {
	switch slot {
	case SlotBefore:
		i.EvidenceBefore = refs
	case SlotAfter:
		i.EvidenceAfter = refs
	}
}

// AllEvidence lists every reference across slots in slot order.
func (i *Initiative) AllEvidence() []EvidenceRef {
	var refs []EvidenceRef
	for _, slot := range EvidenceSlots {
		refs = append(refs, i.Evidence(slot)...)
	}
	return refs
}
