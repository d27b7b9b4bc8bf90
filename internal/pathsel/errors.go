package pathsel

import (
	"errors"
	"fmt"

	"torpathsim/internal/model"
)

// ErrInvalidArgument is returned by the weighted draw when it is handed an
// empty pool or a weight vector that does not line up with the pool. It
// signals a caller bug, not a property of the relay set.
var ErrInvalidArgument = errors.New("invalid argument")

// NoSuitableCandidatesError is returned when filtering leaves no relay for a
// role.
type NoSuitableCandidatesError struct {
	Role model.Role
}

func (e *NoSuitableCandidatesError) Error() string {
	return fmt.Sprintf("no suitable %s candidates", e.Role)
}

// NoCandidatesRole extracts the failing role from err, if err (or anything
// it wraps) is a NoSuitableCandidatesError.
func NoCandidatesRole(err error) (model.Role, bool) {
	var nsc *NoSuitableCandidatesError
	if errors.As(err, &nsc) {
		return nsc.Role, true
	}
	return "", false
}
