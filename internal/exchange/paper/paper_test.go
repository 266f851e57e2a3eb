package paper

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mwalczyk/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendOrderRestsUntilCancelled(t *testing.T) {
	g := NewOrderGateway(testLogger())

	ack, err := g.SendOrder(domain.SubmitNewOrder{
		Side:        domain.SideBid,
		Size:        0.5,
		Type:        domain.OrderTypeLimit,
		Price:       240.10,
		TimeInForce: domain.TimeInForceGTC,
	})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}

	rpt := <-g.Reports()
	if rpt.OrderID != ack.ClientOrderID || rpt.Status != domain.OrderStatusWorking {
		t.Fatalf("got %+v, want working report for %s", rpt, ack.ClientOrderID)
	}
	if rpt.LeavesQuantity != 0.5 {
		t.Errorf("leaves = %v, want 0.5", rpt.LeavesQuantity)
	}

	if _, err := g.CancelOrder(domain.OrderCancel{OrderID: ack.ClientOrderID, Side: domain.SideBid}); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	rpt = <-g.Reports()
	if rpt.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %v, want cancelled", rpt.Status)
	}
}

func TestIOCFillsImmediately(t *testing.T) {
	g := NewOrderGateway(testLogger())

	ack, err := g.SendOrder(domain.SubmitNewOrder{
		Side:        domain.SideAsk,
		Size:        0.25,
		Type:        domain.OrderTypeLimit,
		Price:       240.50,
		TimeInForce: domain.TimeInForceIOC,
	})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}

	rpt := <-g.Reports()
	if rpt.Status != domain.OrderStatusComplete {
		t.Fatalf("status = %v, want complete", rpt.Status)
	}
	if rpt.LastQuantity != 0.25 || rpt.LastPrice != 240.50 {
		t.Errorf("fill = %v @ %v, want 0.25 @ 240.50", rpt.LastQuantity, rpt.LastPrice)
	}
	if rpt.OrderID != ack.ClientOrderID {
		t.Errorf("order id mismatch: %s vs %s", rpt.OrderID, ack.ClientOrderID)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	g := NewOrderGateway(testLogger())

	_, err := g.CancelOrder(domain.OrderCancel{OrderID: "missing", Side: domain.SideBid})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceIssuesFreshOrder(t *testing.T) {
	g := NewOrderGateway(testLogger())

	ack, _ := g.SendOrder(domain.SubmitNewOrder{
		Side:        domain.SideBid,
		Size:        0.5,
		Type:        domain.OrderTypeLimit,
		Price:       240.10,
		TimeInForce: domain.TimeInForceGTC,
	})
	<-g.Reports() // working

	ack2, err := g.ReplaceOrder(domain.CancelReplaceOrder{
		OrigOrderID: ack.ClientOrderID,
		Side:        domain.SideBid,
		Size:        0.5,
		Price:       240.20,
	})
	if err != nil {
		t.Fatalf("ReplaceOrder: %v", err)
	}
	if ack2.ClientOrderID == ack.ClientOrderID {
		t.Error("replacement should get a fresh client order id")
	}

	cancelled := <-g.Reports()
	if cancelled.Status != domain.OrderStatusCancelled || cancelled.OrderID != ack.ClientOrderID {
		t.Errorf("first report = %+v, want cancel of original", cancelled)
	}
	working := <-g.Reports()
	if working.Status != domain.OrderStatusWorking || working.OrderID != ack2.ClientOrderID {
		t.Errorf("second report = %+v, want working replacement", working)
	}
}

func TestFillRestingOrder(t *testing.T) {
	g := NewOrderGateway(testLogger())

	ack, _ := g.SendOrder(domain.SubmitNewOrder{
		Side:        domain.SideBid,
		Size:        1,
		Type:        domain.OrderTypeLimit,
		Price:       240.10,
		TimeInForce: domain.TimeInForceGTC,
	})
	<-g.Reports() // working

	if err := g.Fill(ack.ClientOrderID, 240.10); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	rpt := <-g.Reports()
	if rpt.Status != domain.OrderStatusComplete || rpt.LastQuantity != 1 {
		t.Errorf("report = %+v, want complete fill of 1", rpt)
	}
}

func TestBrokerMetadata(t *testing.T) {
	b := NewBroker(0, 0.002, 240, testLogger())

	if b.Exchange() != domain.ExchangePaper {
		t.Errorf("exchange = %v", b.Exchange())
	}
	if b.TakerFee() != 0.002 {
		t.Errorf("taker fee = %v", b.TakerFee())
	}
	if b.ConnectivityStatus() != domain.Connected {
		t.Error("paper venue should always be connected")
	}

	top, ok := b.CurrentBook()
	if !ok {
		t.Fatal("paper venue should have a book immediately")
	}
	if top.Bid.Price >= top.Ask.Price {
		t.Errorf("crossed synthetic book: bid %v >= ask %v", top.Bid.Price, top.Ask.Price)
	}
}
