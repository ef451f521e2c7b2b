package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"options-relay/internal/analysis"
	"options-relay/internal/broker"
	"options-relay/internal/classifier"
	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"

	"github.com/rs/zerolog"
)

func newTestCore(t *testing.T) (*Core, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	log := logging.New(logging.Config{Level: "ERROR"})
	hub := NewHub(bus, log)
	lc := lifecycle.New(bus, zerolog.Nop(), nil)
	coordinator := lot.New(bus)
	table := classifier.NewTable(nil, nil)

	factory := func(ctx context.Context, apiToken, appID string) (*broker.Session, error) {
		return broker.NewSession(broker.Config{URL: "wss://example.invalid"}, zerolog.Nop()), nil
	}

	core := NewCore(hub, bus, coordinator, lc, table, analysis.DefaultConfig(), factory, []float64{1, 2, 6}, 60, 10, log)
	return core, bus
}

func TestDispatchUnknownCommandIsIgnored(t *testing.T) {
	core, _ := newTestCore(t)
	core.Dispatch([]byte(`{"command":"NOT_A_REAL_COMMAND"}`))
	if core.WorkerCount() != 0 {
		t.Fatalf("unknown command must not spawn workers")
	}
}

func TestDispatchMalformedPayloadIsIgnored(t *testing.T) {
	core, _ := newTestCore(t)
	core.Dispatch([]byte(`{not valid json`))
	if core.WorkerCount() != 0 {
		t.Fatalf("malformed command must not spawn workers")
	}
}

func TestDispatchSyncStatusPublishesLotStatus(t *testing.T) {
	core, bus := newTestCore(t)

	got := make(chan events.Event, 1)
	bus.Subscribe(events.TypeLotStatus, func(e events.Event) { got <- e })

	cmd, _ := json.Marshal(map[string]interface{}{"command": "SYNC_STATUS"})
	core.Dispatch(cmd)

	select {
	case e := <-got:
		if e.Type != events.TypeLotStatus {
			t.Fatalf("type = %v, want lot_status", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a lot_status publish from SYNC_STATUS")
	}
}

func TestDispatchStopAutoTradeDeactivatesLot(t *testing.T) {
	core, _ := newTestCore(t)
	core.lot.Start(lot.Config{Policy: lot.PolicyFixed, InitialStake: 1, TargetProfit: 1e9, TargetWin: 1 << 30})

	cmd, _ := json.Marshal(map[string]interface{}{"command": "STOP_AUTO_TRADE"})
	core.Dispatch(cmd)

	if core.lot.Snapshot().LotActive {
		t.Fatal("expected lot to be deactivated after STOP_AUTO_TRADE")
	}
}
