// Package policy decides who may change what.
//
// One rule covers every mutable resource: the caller must be the
// resource's owner or an administrator (permission 0).
package policy

import (
	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
)

// CanModify reports whether caller may edit or delete a resource owned by
// ownerID.
func CanModify(caller model.Identity, ownerID string) bool {
	if caller.IsAdmin() {
		return true
	}
	return caller.AccountID != "" && caller.AccountID == ownerID
}

// RequireOwner returns a Forbidden error when caller may not modify a
// resource of the given kind owned by ownerID.
func RequireOwner(caller model.Identity, ownerID, resource string) error {
	if CanModify(caller, ownerID) {
		return nil
	}
	return apperror.Forbidden("only the author or an administrator can modify this " + resource)
}

// CanView reports whether caller may read a resource that is hidden from
// everyone except its owner.
func CanView(caller model.Identity, ownerID string, private bool) bool {
	return !private || CanModify(caller, ownerID)
}
