package models

// RevocationStatus is the lifecycle state of a revocation request.
type RevocationStatus string

const (
	// RevocationNone marks an action that was never revoked nor requested for revocation.
	RevocationNone RevocationStatus = ""
	// RevocationPending marks an open revocation request waiting for an approver.
	RevocationPending RevocationStatus = "pending"
	// RevocationApproved marks a revoked action. This state is terminal.
	RevocationApproved RevocationStatus = "approved"
	// RevocationDenied marks a rejected request; a new request may be opened.
	RevocationDenied RevocationStatus = "denied"
)

// Revocation tracks the revocation lifecycle of an action.
// Timestamp is set if and only if Status is RevocationApproved.
type Revocation struct {
	Timestamp *int64           `json:"timestamp"`
	Approver  *string          `json:"approver"`
	Requestor *string          `json:"requestor"`
	Status    RevocationStatus `json:"status"`
	Reason    *string          `json:"reason"`
}

// IsRevoked reports whether the revocation has been approved.
func (r Revocation) IsRevoked() bool {
	return r.Timestamp != nil
}

// Clone returns a deep copy.
func (r Revocation) Clone() Revocation {
	return Revocation{
		Timestamp: cloneInt64(r.Timestamp),
		Approver:  cloneString(r.Approver),
		Requestor: cloneString(r.Requestor),
		Status:    r.Status,
		Reason:    cloneString(r.Reason),
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
