package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeInvalidAssignee, status: http.StatusUnprocessableEntity, publicMsg: "staff member cannot handle orders"},
		{code: CodeAlreadyAssigned, status: http.StatusConflict, publicMsg: "order already assigned", detailsOK: true},
		{code: CodeOrderNotAssigned, status: http.StatusUnprocessableEntity, publicMsg: "order is not assigned"},
		{code: CodePermissionDenied, status: http.StatusForbidden, publicMsg: "permission denied"},
		{code: CodeEmptyOrderViolation, status: http.StatusUnprocessableEntity, publicMsg: "order must keep at least one item", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "reserve stock")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: reserve stock: boom" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestHasCodeLooksThroughWrapping(t *testing.T) {
	inner := New(CodeInsufficientStock, "only 2 left")
	outer := fmt.Errorf("add item: %w", inner)
	if !HasCode(outer, CodeInsufficientStock) {
		t.Fatalf("expected code to be found through fmt wrapping")
	}
	if HasCode(outer, CodeNotFound) {
		t.Fatalf("unexpected code match")
	}
	if HasCode(nil, CodeNotFound) {
		t.Fatalf("nil error should not match")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_order_items_stock_item", TableName: "order_items"}
	dump := Dump(Wrap(CodeConflict, pgErr, "delete stock item"))
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.Postgres.Code != "23503" || dump.Postgres.Constraint != "fk_order_items_stock_item" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %v", dump.Chain)
	}

	pqDump := Dump(&pq.Error{Code: "23505", Constraint: "ux_order_items_order_stock"})
	if pqDump.Postgres.Code != "23505" || pqDump.Postgres.Constraint != "ux_order_items_order_stock" {
		t.Fatalf("unexpected pq fields %+v", pqDump)
	}
}

func TestDumpFieldsOmitEmptyPostgresValues(t *testing.T) {
	fields := Dump(&pgconn.PgError{Code: "23505", TableName: "stock_items"}).Fields()
	if fields["pg_code"] != "23505" || fields["pg_table"] != "stock_items" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_constraint"]; ok {
		t.Fatalf("empty constraint should be omitted: %v", fields)
	}
	if PGCode(stdErrors.New("plain")) != "" {
		t.Fatalf("plain errors have no sqlstate")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("assign: %w", Newf(CodeAlreadyAssigned, "order %d has a handler", 7))
	if !stdErrors.Is(err, New(CodeAlreadyAssigned, "")) {
		t.Fatalf("expected match by code")
	}
	if stdErrors.Is(err, New(CodeInvalidAssignee, "")) {
		t.Fatalf("unexpected match on a different code")
	}
	if got := As(err).Message(); got != "order 7 has a handler" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestHasCodeSeesInnerCodedErrors(t *testing.T) {
	inner := New(CodeInsufficientStock, "short")
	outer := Wrap(CodeInternal, inner, "reserve")
	if !HasCode(outer, CodeInsufficientStock) || !HasCode(outer, CodeInternal) {
		t.Fatalf("expected both codes in the chain")
	}
}

func TestWithDetailsDoesNotMutateReceiver(t *testing.T) {
	base := New(CodeValidation, "bad input")
	detailed := base.WithDetails(map[string]string{"field": "quantity"})
	if base.Details() != nil {
		t.Fatalf("receiver was mutated")
	}
	if detailed.Details() == nil || detailed.Code() != CodeValidation {
		t.Fatalf("unexpected copy %+v", detailed)
	}
}
