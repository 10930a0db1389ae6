package marketdata

import (
	"testing"
	"time"
)

func TestAddTickIgnoredWithoutSubscriber(t *testing.T) {
	r := New()
	r.AddTick("BTCUSDT", 100) // no panic, no-op
}

func TestResampleDispatchesEnrichedBarOncePastWarmup(t *testing.T) {
	r := New()
	ch, _, deregister := r.Register("BTCUSDT", 2, 3.0, 0)
	defer deregister()

	now := time.Now()
	for i := 0; i < 5; i++ {
		r.AddTick("BTCUSDT", 100+float64(i))
		r.resampleAll(now.Add(time.Duration(i) * time.Minute))
	}

	select {
	case bar := <-ch:
		if bar.Bar.Close == 0 {
			t.Fatal("expected a non-zero close price")
		}
	default:
		t.Fatal("expected at least one dispatched enriched bar once history exceeds the period")
	}
}

func TestResampleWithholdsBarsDuringWarmup(t *testing.T) {
	r := New()
	ch, _, deregister := r.Register("BTCUSDT", 10, 3.0, 0)
	defer deregister()

	now := time.Now()
	for i := 0; i < 5; i++ {
		r.AddTick("BTCUSDT", 100+float64(i))
		r.resampleAll(now.Add(time.Duration(i) * time.Minute))
	}

	select {
	case bar := <-ch:
		t.Fatalf("expected no dispatched bar before history exceeds period=10, got %+v", bar)
	default:
	}
}

func TestResampleHonorsMinHistoryFloorAbovePeriod(t *testing.T) {
	r := New()
	ch, _, deregister := r.Register("BTCUSDT", 2, 3.0, 10)
	defer deregister()

	now := time.Now()
	for i := 0; i < 5; i++ {
		r.AddTick("BTCUSDT", 100+float64(i))
		r.resampleAll(now.Add(time.Duration(i) * time.Minute))
	}

	select {
	case bar := <-ch:
		t.Fatalf("expected minHistory=10 to withhold bars past a period=2 gate, got %+v", bar)
	default:
	}
}

func TestResampleSkipsSilentMinute(t *testing.T) {
	r := New()
	_, _, deregister := r.Register("BTCUSDT", 10, 3.0, 0)
	defer deregister()

	st := r.symbols["BTCUSDT"]
	if st == nil {
		t.Fatal("expected symbol state to exist after Register")
	}
	r.resampleAll(time.Now())
	if len(st.history) != 0 {
		t.Fatalf("expected no bar appended for a silent minute, got %d", len(st.history))
	}
}

func TestDeregisterClosesChannels(t *testing.T) {
	r := New()
	ch, priceCh, deregister := r.Register("BTCUSDT", 10, 3.0, 0)
	deregister()
	if _, ok := <-ch; ok {
		t.Fatal("expected bar channel to be closed after deregister")
	}
	if _, ok := <-priceCh; ok {
		t.Fatal("expected price channel to be closed after deregister")
	}
	if _, exists := r.symbols["BTCUSDT"]; exists {
		t.Fatal("expected symbol state to be removed once its last subscriber deregisters")
	}
}

func TestAddTickForwardsPriceToSubscriber(t *testing.T) {
	r := New()
	_, priceCh, deregister := r.Register("BTCUSDT", 10, 3.0, 0)
	defer deregister()

	r.AddTick("BTCUSDT", 12345)

	select {
	case price := <-priceCh:
		if price != 12345 {
			t.Fatalf("expected forwarded price 12345, got %v", price)
		}
	default:
		t.Fatal("expected AddTick to forward a price update to the registered subscriber")
	}
}

func TestAddTickDropsOldestPriceWhenSubscriberIsSlow(t *testing.T) {
	r := New()
	_, priceCh, deregister := r.Register("BTCUSDT", 10, 3.0, 0)
	defer deregister()

	for i := 0; i < 100; i++ {
		r.AddTick("BTCUSDT", float64(i))
	}

	var last float64
	for {
		select {
		case last = <-priceCh:
			continue
		default:
		}
		break
	}
	if last != 99 {
		t.Fatalf("expected the most recent price 99 to survive drop-oldest backpressure, got %v", last)
	}
}
