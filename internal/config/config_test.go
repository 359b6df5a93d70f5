package config

import (
	"testing"
)

func TestParseProjectionRoutesEmpty(t *testing.T) {
	routes, err := ParseProjectionRoutes("")
	if err != nil {
		t.Fatalf("empty overlay should parse, got %v", err)
	}
	if len(routes) != 0 {
		t.Fatalf("empty overlay should yield no bindings, got %v", routes)
	}
}

func TestParseProjectionRoutesSingle(t *testing.T) {
	routes, err := ParseProjectionRoutes("TransactionHasBeenCompletedEvent=merchant_balance")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := routes["TransactionHasBeenCompletedEvent"]
	if len(got) != 1 || got[0] != "merchant_balance" {
		t.Fatalf("unexpected binding: %v", got)
	}
}

func TestParseProjectionRoutesFanOut(t *testing.T) {
	routes, err := ParseProjectionRoutes("EstateCreatedEvent=estate_provisioner|estate, VoucherIssuedEvent=voucher")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	estate := routes["EstateCreatedEvent"]
	if len(estate) != 2 || estate[0] != "estate_provisioner" || estate[1] != "estate" {
		t.Fatalf("unexpected fan-out binding: %v", estate)
	}
	if len(routes["VoucherIssuedEvent"]) != 1 {
		t.Fatalf("expected voucher binding to survive alongside the fan-out")
	}
}

func TestParseProjectionRoutesMalformed(t *testing.T) {
	for _, raw := range []string{
		"NoEqualsSign",
		"=merchant_balance",
		"SomeEvent=",
		"SomeEvent=a||b",
	} {
		if _, err := ParseProjectionRoutes(raw); err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
	}
}
