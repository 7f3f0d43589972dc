/*
chain.go - Reporting-chain visibility

PURPOSE:
  Decides whether a requester may see a target user's timesheet. Visibility
  is granted to the user themself, their department owner, and anyone in
  the upward manager chain.

CYCLE SAFETY:
  The directory is produced by an external sync and manager references can
  be malformed into cycles. The walk is iterative with an explicit
  visited-email set and terminates on any repeat, so a cyclic chain simply
  resolves to "not visible" instead of looping.
*/
package compliance

import "strings"

// CanView reports whether requesterEmail may view target's timesheet.
func CanView(directory []UserRecord, target UserRecord, requesterEmail string) bool {
	if requesterEmail == "" {
		return false
	}
	if strings.EqualFold(target.Email, requesterEmail) {
		return true
	}
	if owner := target.Department.Owner; owner != nil && strings.EqualFold(owner.Email, requesterEmail) {
		return true
	}

	visited := make(map[string]bool)
	ref := target.Manager
	for ref != nil {
		manager := resolveRef(directory, ref)
		if manager == nil {
			return false
		}
		email := strings.ToLower(manager.Email)
		if visited[email] {
			return false // cycle in the directory data
		}
		visited[email] = true

		if strings.EqualFold(manager.Email, requesterEmail) {
			return true
		}
		ref = manager.Manager
	}
	return false
}

// resolveRef finds the directory record a UserRef points at, trying the ID
// first and falling back to the email. Sync data fills in whichever it had.
func resolveRef(directory []UserRecord, ref *UserRef) *UserRecord {
	for i := range directory {
		if ref.ID != "" && directory[i].ID == ref.ID {
			return &directory[i]
		}
		if ref.Email != "" && strings.EqualFold(directory[i].Email, ref.Email) {
			return &directory[i]
		}
	}
	return nil
}
