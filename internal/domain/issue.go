package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusPending     IssueStatus = "Pending"
	IssueStatusResolved    IssueStatus = "Resolved"
	IssueStatusCancelled   IssueStatus = "Cancelled"
	IssueStatusMaintenance IssueStatus = "Maintenance"
)

// Valid reports whether s is one of the closed set of statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusPending, IssueStatusResolved, IssueStatusCancelled, IssueStatusMaintenance:
		return true
	}
	return false
}

// Region enumerates the operating regions stations belong to.
type Region string

const (
	RegionWRNorth  Region = "WR-North"
	RegionWRSouth  Region = "WR-South"
	RegionCREast   Region = "CR-East"
	RegionCRSouth  Region = "CR-South"
	RegionCRNorth  Region = "CR-North"
	RegionSouthern Region = "Southern"
	RegionERNorth  Region = "ER-North"
	RegionERSouth  Region = "ER-South"
)

// Regions lists every valid region.
var Regions = []Region{
	RegionWRNorth, RegionWRSouth, RegionCREast, RegionCRSouth,
	RegionCRNorth, RegionSouthern, RegionERNorth, RegionERSouth,
}

// Valid reports whether r is a known region.
func (r Region) Valid() bool {
	for _, candidate := range Regions {
		if candidate == r {
			return true
		}
	}
	return false
}

// IssueType enumerates audit finding categories.
type IssueType string

const (
	IssueTypeCustomerExperience   IssueType = "Customer Experience"
	IssueTypeBayViolation         IssueType = "Bay Violation"
	IssueTypeHousekeeping         IssueType = "Housekeeping"
	IssueTypeCustomerMistreatment IssueType = "Customer Mistreatment"
	IssueTypeInitiative           IssueType = "Initiative"
	IssueTypeAdmin                IssueType = "Admin Issues"
	IssueTypeMaintenance          IssueType = "Maintenance Issues"
	IssueTypeIT                   IssueType = "IT Issues"
	IssueTypeInventory            IssueType = "Inventory Issues"
	IssueTypeViolation            IssueType = "Violation"
	IssueTypeSafety               IssueType = "Safety"
	IssueTypeOthers               IssueType = "Others"
)

// IssueTypes lists every valid issue type.
var IssueTypes = []IssueType{
	IssueTypeCustomerExperience, IssueTypeBayViolation, IssueTypeHousekeeping,
	IssueTypeCustomerMistreatment, IssueTypeInitiative, IssueTypeAdmin,
	IssueTypeMaintenance, IssueTypeIT, IssueTypeInventory, IssueTypeViolation,
	IssueTypeSafety, IssueTypeOthers,
}

// Valid reports whether t is a known issue type.
func (t IssueType) Valid() bool {
	for _, candidate := range IssueTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Issue is the aggregate for a field-audit finding raised against a station.
type Issue struct {
	ID                 int64
	Reporter           IdentityRef
	Week               int
	Date               time.Time
	DateIdentified     time.Time
	Region             Region
	Station            string
	Type               IssueType
	Details            string
	AreaManager        string
	RegionalManager    string
	ProcessSpecialist  string
	EvidenceBefore     []EvidenceRef
	EvidenceAfter      []EvidenceRef
	IsPrioritized      bool
	Status             IssueStatus
	ResolvedBy         *IdentityRef
	DateOfClosure      *time.Time
	LogNumber          string
	MaintenanceComment string
	ActionTaken        string
	Feedback           string
	UpdatedBy          []Attribution
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Category is the display label: prioritized items are issues, the rest observations.
func (i *Issue) Category() string {
	return CategoryOf(i.IsPrioritized)
}

// CategoryOf maps the severity flag to its display label.
func CategoryOf(prioritized bool) string {
	if prioritized {
		return "Issue"
	}
	return "Observation"
}

// Clone returns a deep copy so mutations can be staged and discarded.
func (i *Issue) Clone() *Issue {
	cp := *i
	cp.EvidenceBefore = append([]EvidenceRef(nil), i.EvidenceBefore...)
	cp.EvidenceAfter = append([]EvidenceRef(nil), i.EvidenceAfter...)
	cp.UpdatedBy = append([]Attribution(nil), i.UpdatedBy...)
	if i.ResolvedBy != nil {
		rb := *i.ResolvedBy
		cp.ResolvedBy = &rb
	}
	if i.DateOfClosure != nil {
		closed := *i.DateOfClosure
		cp.DateOfClosure = &closed
	}
	return &cp
}

// DaysOpen is the derived age of the issue as of now, frozen at closure.
func (i *Issue) DaysOpen(now time.Time) int {
	return DaysOpen(i.DateIdentified, i.DateOfClosure, now)
}
