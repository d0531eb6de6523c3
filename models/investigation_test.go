package models

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/flowlogic/wms_backend/utils"
)

func TestAssignRootCause_RejectsBadInput(t *testing.T) {
	ctx := context.Background()

	_, err := AssignRootCause(ctx, 1, "", RootCauseCategoryProcess, nil, nil)
	var validation *utils.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected a validation error for an empty root cause, got %v", err)
	}

	_, err = AssignRootCause(ctx, 1, "mis-pick", RootCauseCategory("bogus"), nil, nil)
	if !errors.As(err, &validation) {
		t.Fatalf("expected a validation error for an unknown category, got %v", err)
	}
}
