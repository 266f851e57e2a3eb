package hitbtc

import (
	"testing"
	"time"

	"github.com/mwalczyk/arbot/internal/domain"
)

func snapshotMsg() *marketDataSnapshotFullRefresh {
	return &marketDataSnapshotFullRefresh{
		Symbol: "BTCUSD",
		Bid: []update{
			{Price: 240.10, Size: 500},
			{Price: 240.00, Size: 1000},
		},
		Ask: []update{
			{Price: 240.50, Size: 300},
			{Price: 241.00, Size: 800},
		},
	}
}

func TestBookIgnoresIncrementalBeforeSnapshot(t *testing.T) {
	b := newBook()

	_, ok := b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Bid:    []update{{Price: 240.10, Size: 500}},
	}, time.Now())
	if ok {
		t.Fatal("incremental before snapshot should not produce a top")
	}

	if _, ok := b.top(time.Now()); ok {
		t.Fatal("book should not be primed")
	}
}

func TestBookSnapshotTop(t *testing.T) {
	b := newBook()

	top, ok := b.applySnapshot(snapshotMsg(), time.Now())
	if !ok {
		t.Fatal("snapshot should produce a top")
	}

	want := domain.MarketUpdate{
		Bid:  domain.PriceLevel{Price: 240.10, Size: 5},
		Ask:  domain.PriceLevel{Price: 240.50, Size: 3},
		Time: top.Time,
	}
	if top != want {
		t.Errorf("top = %+v, want %+v", top, want)
	}
}

func TestBookIncrementalReplaceSemantics(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg(), time.Now())

	// Overwrite the best bid's size. Replace, not add.
	top, ok := b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Bid:    []update{{Price: 240.10, Size: 200}},
	}, time.Now())
	if !ok {
		t.Fatal("expected a top")
	}
	if top.Bid.Size != 2 {
		t.Errorf("bid size = %v, want 2", top.Bid.Size)
	}

	// Size zero deletes the level; the next level becomes best.
	top, ok = b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Bid:    []update{{Price: 240.10, Size: 0}},
	}, time.Now())
	if !ok {
		t.Fatal("expected a top")
	}
	if top.Bid.Price != 240.00 || top.Bid.Size != 10 {
		t.Errorf("bid = %+v, want 240.00 x 10", top.Bid)
	}
}

func TestBookIncrementalBetterLevel(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg(), time.Now())

	top, ok := b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Ask:    []update{{Price: 240.30, Size: 100}},
	}, time.Now())
	if !ok {
		t.Fatal("expected a top")
	}
	if top.Ask.Price != 240.30 || top.Ask.Size != 1 {
		t.Errorf("ask = %+v, want 240.30 x 1", top.Ask)
	}
	// Bid side untouched.
	if top.Bid.Price != 240.10 {
		t.Errorf("bid price = %v, want 240.10", top.Bid.Price)
	}
}

func TestBookSnapshotResets(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg(), time.Now())

	b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Bid:    []update{{Price: 245.00, Size: 50}},
	}, time.Now())

	// A fresh snapshot discards accumulated incremental state.
	top, ok := b.applySnapshot(snapshotMsg(), time.Now())
	if !ok {
		t.Fatal("expected a top")
	}
	if top.Bid.Price != 240.10 {
		t.Errorf("bid price = %v, want 240.10 after snapshot reset", top.Bid.Price)
	}
}

func TestBookEmptySideProducesNoTop(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg(), time.Now())

	_, ok := b.applyIncremental(&marketDataIncrementalRefresh{
		Symbol: "BTCUSD",
		Ask: []update{
			{Price: 240.50, Size: 0},
			{Price: 241.00, Size: 0},
		},
	}, time.Now())
	if ok {
		t.Fatal("a one-sided book should not produce a top")
	}
}
