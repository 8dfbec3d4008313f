// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/capgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("CAPABILITY_INVALID").Errorf("bad key")
	errutil.AssertErrorCode(t, err, "CAPABILITY_INVALID")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("capability", "join_method").Errorf("bad value")
	errutil.AssertErrorContext(t, err, "capability", "join_method")
}

func TestAssertErrorDomain_Matching(t *testing.T) {
	err := oops.In("resolve").Errorf("not materialized")
	errutil.AssertErrorDomain(t, err, "resolve")
}
