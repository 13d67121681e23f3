package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUploadErrorUnwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := fmt.Errorf("wrapped: %w", &UploadError{Path: "a.png", Err: cause})

	var ue *UploadError
	if !errors.As(err, &ue) || ue.Path != "a.png" {
		t.Fatalf("errors.As failed: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &NetworkError{Op: "POST /api/upload", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "POST /api/upload") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestServiceErrorMessage(t *testing.T) {
	withMsg := &ServiceError{Status: 400, Message: "bad field"}
	if !strings.Contains(withMsg.Error(), "bad field") || !strings.Contains(withMsg.Error(), "400") {
		t.Errorf("Error() = %q", withMsg.Error())
	}
	bare := &ServiceError{Status: 503}
	if !strings.Contains(bare.Error(), "503") {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	err := &ValidationError{Field: "title"}
	if !strings.Contains(err.Error(), `"title"`) {
		t.Errorf("Error() = %q", err.Error())
	}
}
