package mapping

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassifiers(t *testing.T) {
	trap := &TrapError{Function: "store.set", Reason: "boom"}
	if !IsTrap(trap) || !IsTrap(fmt.Errorf("wrapped: %w", trap)) {
		t.Error("IsTrap misses")
	}
	if IsTrap(errors.New("plain")) {
		t.Error("IsTrap false positive")
	}

	missing := &HandlerMissingError{Handler: "h"}
	if !IsHandlerMissing(missing) {
		t.Error("IsHandlerMissing misses")
	}
	if !errors.Is(missing, ErrHandlerMissing) {
		t.Error("HandlerMissingError does not unwrap to sentinel")
	}

	validation := &ValidationError{Reason: "bad module"}
	if !IsValidation(validation) {
		t.Error("IsValidation misses")
	}

	collab := &CollaboratorError{Collaborator: "store", Cause: errors.New("down")}
	if !IsCollaboratorFailure(collab) {
		t.Error("IsCollaboratorFailure misses")
	}
	if !IsCollaboratorFailure(&TrapError{Function: "f", Reason: "r", Cause: collab}) {
		t.Error("IsCollaboratorFailure misses wrapped cause")
	}

	term := &ThreadTerminationError{SubgraphID: "s", Cause: ErrThreadTerminated}
	if !IsThreadTermination(term) || !IsThreadTermination(ErrThreadTerminated) {
		t.Error("IsThreadTermination misses")
	}

	lost := &ReplyLostError{SubgraphID: "s"}
	if !errors.Is(lost, ErrReplyLost) {
		t.Error("ReplyLostError does not unwrap to sentinel")
	}
}

func TestErrorMessages(t *testing.T) {
	trap := &TrapError{Function: "bigInt.dividedBy", Reason: "division by zero"}
	if msg := trap.Error(); msg != "trap in bigInt.dividedBy: division by zero" {
		t.Errorf("trap message: %q", msg)
	}

	missing := &HandlerMissingError{Handler: "handleTransfer"}
	if msg := missing.Error(); msg != `handler "handleTransfer" not found in module exports` {
		t.Errorf("missing message: %q", msg)
	}
}
