package fees

import (
	"errors"
	"fmt"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/generic"
)

// ErrFeeLocked is returned when a fee's status forbids the change.
var ErrFeeLocked = errors.New("fee status does not allow changes")

// StatusError provides details about a status-gated fee change.
type StatusError struct {
	FeeID  generic.FeeID
	Status FeeStatus
	Action academic.Action
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot %s fee %s: status is %s", e.Action, e.FeeID, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrFeeLocked }
