package domain

import "context"

type LookupOutcome int

const (
	LookupFound LookupOutcome = iota + 1
	LookupNotFound
	LookupUnavailable
)

func (o LookupOutcome) String() string {
	switch o {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// UserLookup is the answer to "does this user exist". Err is set only for
// LookupUnavailable and explains why no definite answer was obtained.
type UserLookup struct {
	Outcome LookupOutcome
	User    *User
	Err     error
}

// UserDirectory is the ledger's view of the user service.
type UserDirectory interface {
	LookupUser(ctx context.Context, id int64) UserLookup
	Ping(ctx context.Context) error
}
