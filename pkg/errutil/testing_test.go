// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/authgate/authgate/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorCode_WrappedKeepsInnerCode(t *testing.T) {
	inner := oops.Code("TOKEN_SIGN_FAILED").Errorf("sign")
	err := oops.Code("AUTH_SIGNIN_FAILED").Wrap(inner)
	errutil.AssertErrorCode(t, err, "TOKEN_SIGN_FAILED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", "123").Errorf("test error")
	errutil.AssertErrorContext(t, err, "user_id", "123")
}
