package hitbtc

import (
	"errors"
	"testing"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

func TestTranslateStatus(t *testing.T) {
	cases := []struct {
		execReportType string
		orderStatus    string
		want           domain.OrderStatus
	}{
		{"new", "", domain.OrderStatusWorking},
		{"status", "", domain.OrderStatusWorking},
		{"canceled", "", domain.OrderStatusCancelled},
		{"expired", "", domain.OrderStatusComplete},
		{"rejected", "", domain.OrderStatusRejected},
		{"trade", "filled", domain.OrderStatusComplete},
		{"trade", "partiallyFilled", domain.OrderStatusWorking},
		{"somethingNew", "", domain.OrderStatusOther},
	}

	for _, tc := range cases {
		got := translateStatus(&executionReport{
			ExecReportType: tc.execReportType,
			OrderStatus:    tc.orderStatus,
		})
		if got != tc.want {
			t.Errorf("translateStatus(%q/%q) = %v, want %v",
				tc.execReportType, tc.orderStatus, got, tc.want)
		}
	}
}

func TestTranslateSide(t *testing.T) {
	if s, err := translateSide(domain.SideBid); err != nil || s != "buy" {
		t.Errorf("bid -> (%q, %v), want buy", s, err)
	}
	if s, err := translateSide(domain.SideAsk); err != nil || s != "sell" {
		t.Errorf("ask -> (%q, %v), want sell", s, err)
	}
	if _, err := translateSide(domain.Side("both")); !errors.Is(err, domain.ErrUnsupportedSide) {
		t.Errorf("unknown side should fail with ErrUnsupportedSide, got %v", err)
	}
}

func TestTranslateTIF(t *testing.T) {
	for tif, want := range map[domain.TimeInForce]string{
		domain.TimeInForceGTC: "GTC",
		domain.TimeInForceIOC: "IOC",
		domain.TimeInForceFOK: "FOK",
	} {
		got, err := translateTIF(tif)
		if err != nil || got != want {
			t.Errorf("translateTIF(%v) = (%q, %v), want %q", tif, got, err, want)
		}
	}
	if _, err := translateTIF(domain.TimeInForce("GTD")); !errors.Is(err, domain.ErrUnsupportedTIF) {
		t.Errorf("GTD should fail with ErrUnsupportedTIF, got %v", err)
	}
}

func TestReportFromExecutionFillFields(t *testing.T) {
	now := time.Now()

	rpt := reportFromExecution(&executionReport{
		OrderID:        "ex-1",
		ClientOrderID:  "cl-1",
		ExecReportType: "trade",
		OrderStatus:    "partiallyFilled",
		Side:           "buy",
		LastQuantity:   150,
		LastPrice:      240.25,
		LeavesQuantity: 50,
		CumQuantity:    150,
	}, now)

	if rpt.Status != domain.OrderStatusWorking {
		t.Errorf("status = %v, want working", rpt.Status)
	}
	if rpt.LastQuantity != 1.5 || rpt.LastPrice != 240.25 {
		t.Errorf("last = %v @ %v, want 1.5 @ 240.25", rpt.LastQuantity, rpt.LastPrice)
	}
	if rpt.LeavesQuantity != 0.5 {
		t.Errorf("leaves = %v, want 0.5", rpt.LeavesQuantity)
	}
	if rpt.CumQuantity != 1.5 {
		t.Errorf("cum = %v, want 1.5", rpt.CumQuantity)
	}
	if rpt.Side != domain.SideBid {
		t.Errorf("side = %v, want bid", rpt.Side)
	}
}

func TestReportFromExecutionGatesFillFields(t *testing.T) {
	// No execution: LastQuantity/LastPrice stay zero. Terminal status: no
	// leaves quantity.
	rpt := reportFromExecution(&executionReport{
		ClientOrderID:  "cl-2",
		ExecReportType: "canceled",
		LastPrice:      240.25, // wire noise without a lastQuantity
		LeavesQuantity: 100,
	}, time.Now())

	if rpt.LastQuantity != 0 || rpt.LastPrice != 0 {
		t.Errorf("last = %v @ %v, want zero values", rpt.LastQuantity, rpt.LastPrice)
	}
	if rpt.LeavesQuantity != 0 {
		t.Errorf("leaves = %v, want 0 for a cancelled order", rpt.LeavesQuantity)
	}
}

func TestReportFromCancelReject(t *testing.T) {
	rpt := reportFromCancelReject(&cancelReject{
		ClientOrderID:    "cl-3",
		RejectReasonText: "order not found",
	}, time.Now())

	if rpt.Status != domain.OrderStatusRejected {
		t.Errorf("status = %v, want rejected", rpt.Status)
	}
	if !rpt.CancelRejected {
		t.Error("CancelRejected should be set")
	}
	if rpt.RejectMessage != "order not found" {
		t.Errorf("reject message = %q", rpt.RejectMessage)
	}
}
