package blobstore

import (
	"errors"
	"testing"

	smithy "github.com/aws/smithy-go"
)

type fakeAPIError struct {
	code string
}

func (e fakeAPIError) Error() string       { return "api error: " + e.code }
func (e fakeAPIError) ErrorCode() string   { return e.code }
func (e fakeAPIError) ErrorMessage() string { return e.code }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

func TestIsPreconditionFailed(t *testing.T) {
	if !isPreconditionFailed(fakeAPIError{code: "PreconditionFailed"}) {
		t.Errorf("expected PreconditionFailed to be detected")
	}
	if isPreconditionFailed(errors.New("some other error")) {
		t.Errorf("unexpected match for unrelated error")
	}
}
