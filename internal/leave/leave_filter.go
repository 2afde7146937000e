package leave

import (
	"strings"
	"time"

	leaveerrors "go-leave/internal/leave/errors"
)

const (
	SortStartDate = "startdate"
	SortEndDate   = "enddate"
	SortType      = "type"
	SortStatus    = "status"
)

type LeaveFilter struct {
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	SortBy    string
}

// ParseFilter builds a LeaveFilter from raw query values. Empty values mean
// "no bound"; a malformed date is an input error. The search term is used
// verbatim, so surrounding spaces are part of the match.
func ParseFilter(search, startDate, endDate, sortBy string) (LeaveFilter, error) {
	f := LeaveFilter{
		Search: search,
		SortBy: strings.ToLower(strings.TrimSpace(sortBy)),
	}

	if startDate != "" {
		t, err := parseDate(startDate)
		if err != nil {
			return LeaveFilter{}, leaveerrors.ErrInvalidDateFormat
		}
		f.StartDate = &t
	}
	if endDate != "" {
		t, err := parseDate(endDate)
		if err != nil {
			return LeaveFilter{}, leaveerrors.ErrInvalidDateFormat
		}
		f.EndDate = &t
	}

	return f, nil
}

// orderClause falls back to newest start date first for unknown keys.
func (f LeaveFilter) orderClause() string {
	switch f.SortBy {
	case SortStartDate:
		return "leaves.start_date ASC, leaves.id ASC"
	case SortEndDate:
		return "leaves.end_date ASC, leaves.id ASC"
	case SortType:
		return "LOWER(leaves.leave_type) ASC, leaves.id ASC"
	case SortStatus:
		return "leaves.status ASC, leaves.id ASC"
	default:
		return "leaves.start_date DESC, leaves.id ASC"
	}
}

// likePattern lower-cases s and escapes LIKE wildcards so that the search is
// a plain substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
