package authz

import "errors"

// Denial is an authorization failure. Reason is stable and safe to show to
// clients; it never carries internal detail.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

func deny(reason string) error { return &Denial{Reason: reason} }

// AsDenial returns the Denial wrapped in err, if any.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Stable denial reasons not tied to a specific gate.
const (
	ReasonNotWorkspaceMember = "you are not a member of this workspace"
	ReasonWrongWorkspace     = "resource does not belong to the active workspace"
	ReasonNotAuthor          = "only the author or an admin can modify this resource"
)
