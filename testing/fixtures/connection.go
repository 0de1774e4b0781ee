package fixtures

import (
	nethttp "net/http"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/testing/mocks"
)

// Canned response bodies
const (
	TokenResponseBody = `{"token_type":"Bearer","expires_in":3599,"access_token":"test-access-token"}`
	ErrorResponseBody = `{"error":"temporarily_unavailable","error_description":"service busy"}`
	InvalidGrantBody  = `{"error":"invalid_grant","error_description":"AADSTS70000"}`
)

// NewSuccessQueue returns a queue with a single token response.
func NewSuccessQueue() *mocks.ConnectionQueue {
	return mocks.NewConnectionQueue(mocks.NewSuccessConnection("success", TokenResponseBody))
}

// NewTransientFailureQueue returns a queue whose first connection answers status
// and whose second connection answers with a token response.
func NewTransientFailureQueue(status int) *mocks.ConnectionQueue {
	return mocks.NewConnectionQueue(
		mocks.NewFailureConnection("transient", status, ErrorResponseBody),
		mocks.NewSuccessConnection("recovered", TokenResponseBody),
	)
}

// NewPersistentFailureQueue returns a queue whose two connections both answer status.
func NewPersistentFailureQueue(status int) *mocks.ConnectionQueue {
	return mocks.NewConnectionQueue(
		mocks.NewFailureConnection("first", status, ErrorResponseBody),
		mocks.NewFailureConnection("second", status, ErrorResponseBody),
	)
}

// NewTimeoutThenSuccessQueue returns a queue whose first read times out.
func NewTimeoutThenSuccessQueue() *mocks.ConnectionQueue {
	return mocks.NewConnectionQueue(
		mocks.NewTimeoutConnection("timeout"),
		mocks.NewSuccessConnection("recovered", TokenResponseBody),
	)
}

// NewInvalidGrantQueue returns a queue with one terminal 400 response.
func NewInvalidGrantQueue() *mocks.ConnectionQueue {
	return mocks.NewConnectionQueue(
		mocks.NewFailureConnection("invalid_grant", nethttp.StatusBadRequest, InvalidGrantBody),
	)
}
