// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

import "github.com/holomush/capgate/pkg/errutil"

// Error codes returned by the registry.
const (
	CodeDuplicateStatus   = "STATUS_EXISTS"
	CodeIllegalName       = "STATUS_ILLEGAL_NAME"
	CodeNotFound          = "STATUS_NOT_FOUND"
	CodeInvalidCapability = "CAPABILITY_INVALID"
)

// IsDuplicate reports whether err is a DuplicateStatus error.
func IsDuplicate(err error) bool {
	return errutil.HasCode(err, CodeDuplicateStatus)
}

// IsIllegalName reports whether err is an IllegalName error.
func IsIllegalName(err error) bool {
	return errutil.HasCode(err, CodeIllegalName)
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errutil.HasCode(err, CodeNotFound)
}
