package cohort

import "time"

// MatchCriteria controls how multiple match properties combine
type MatchCriteria int

const (
	MatchAll MatchCriteria = iota
	MatchAny
	MatchNone
)

// String returns the string representation of the match criteria
func (m MatchCriteria) String() string {
	switch m {
	case MatchAll:
		return "ALL"
	case MatchAny:
		return "ANY"
	case MatchNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// SequencingOrder controls the order of search results
type SequencingOrder int

const (
	SequenceAny SequencingOrder = iota
	SequenceGUID
	SequenceCreationDateRecent
	SequenceCreationDateOldest
	SequenceLastUpdateRecent
	SequenceLastUpdateOldest
	SequencePropertyAscending
	SequencePropertyDescending
)

// String returns the string representation of the sequencing order
func (s SequencingOrder) String() string {
	switch s {
	case SequenceAny:
		return "ANY"
	case SequenceGUID:
		return "GUID"
	case SequenceCreationDateRecent:
		return "CREATION_DATE_RECENT"
	case SequenceCreationDateOldest:
		return "CREATION_DATE_OLDEST"
	case SequenceLastUpdateRecent:
		return "LAST_UPDATE_RECENT"
	case SequenceLastUpdateOldest:
		return "LAST_UPDATE_OLDEST"
	case SequencePropertyAscending:
		return "PROPERTY_ASCENDING"
	case SequencePropertyDescending:
		return "PROPERTY_DESCENDING"
	default:
		return "UNKNOWN"
	}
}

// SearchOptions carries the filtering, ordering and paging parameters shared by the
// find operations. A PageSize of zero means no limit.
type SearchOptions struct {
	FromOffset           int
	PageSize             int
	LimitStatuses        []InstanceStatus
	LimitClassifications []string
	AsOfTime             *time.Time
	SequencingProperty   string
	SequencingOrder      SequencingOrder
}

// AllowsStatus reports whether an instance with status s passes the status filter.
// With no explicit filter every status except Deleted is allowed.
func (o SearchOptions) AllowsStatus(s InstanceStatus) bool {
	if len(o.LimitStatuses) == 0 {
		return s != StatusDeleted
	}
	for _, allowed := range o.LimitStatuses {
		if allowed == s {
			return true
		}
	}
	return false
}
