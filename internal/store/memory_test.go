package store

import (
	"sync"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore("http://rm1:8088")

	snap := store.Get()
	if snap.RMURL != "http://rm1:8088" {
		t.Errorf("RMURL = %q, want seeded value", snap.RMURL)
	}
	if snap.Reachable {
		t.Error("Reachable = true before any check")
	}
	if snap.Checks != 0 {
		t.Errorf("Checks = %d, want 0", snap.Checks)
	}
	if snap.Breadcrumbs == nil {
		t.Error("Breadcrumbs = nil, want empty map")
	}
}

func TestMemoryStore_UpdateDiscovery(t *testing.T) {
	store := NewMemoryStore("")
	now := time.Now()

	store.UpdateDiscovery(Discovery{
		RMURL:     "http://rm2:8088",
		Reachable: true,
		Helper:    "local",
		LatencyMs: 12,
		CheckedAt: now,
	})

	snap := store.Get()
	if snap.RMURL != "http://rm2:8088" || !snap.Reachable || snap.Error != nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Checks != 1 {
		t.Errorf("Checks = %d, want 1", snap.Checks)
	}

	store.UpdateDiscovery(Discovery{
		RMURL:     "http://rm2:8088",
		Error:     strPtr("YARN ResourceManager (RM) is out of reach."),
		Detail:    strPtr("helper returned no url"),
		CheckedAt: now.Add(time.Minute),
	})

	snap = store.Get()
	if snap.Reachable {
		t.Error("Reachable = true after failed check")
	}
	if snap.Error == nil || *snap.Error != "YARN ResourceManager (RM) is out of reach." {
		t.Errorf("Error = %v", snap.Error)
	}
	if snap.Checks != 2 {
		t.Errorf("Checks = %d, want 2", snap.Checks)
	}
}

func TestMemoryStore_SetBreadcrumbsMerges(t *testing.T) {
	store := NewMemoryStore("")

	store.SetBreadcrumbs(map[string][]Crumb{"status": {{Text: "Home", Route: "/"}}})
	store.SetBreadcrumbs(map[string][]Crumb{"history": {{Text: "Home"}, {Text: "History"}}})
	store.SetBreadcrumbs(map[string][]Crumb{"status": {{Text: "Home"}, {Text: "RM"}}})

	snap := store.Get()
	if len(snap.Breadcrumbs) != 2 {
		t.Fatalf("len(Breadcrumbs) = %d, want 2", len(snap.Breadcrumbs))
	}
	if got := snap.Breadcrumbs["status"]; len(got) != 2 || got[1].Text != "RM" {
		t.Errorf("status trail = %v, want latest", got)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore("")
	store.UpdateDiscovery(Discovery{Error: strPtr("down")})
	store.SetBreadcrumbs(map[string][]Crumb{"status": {{Text: "Home"}}})

	snap := store.Get()
	*snap.Error = "mutated"
	snap.Breadcrumbs["status"][0].Text = "mutated"

	again := store.Get()
	if *again.Error != "down" {
		t.Errorf("Error = %q after mutating copy", *again.Error)
	}
	if again.Breadcrumbs["status"][0].Text != "Home" {
		t.Error("breadcrumbs mutated through copy")
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore("")
	ch := store.Subscribe()

	go store.UpdateDiscovery(Discovery{RMURL: "http://rm:8088", Reachable: true})

	select {
	case snap := <-ch:
		if snap.RMURL != "http://rm:8088" {
			t.Errorf("received RMURL = %q", snap.RMURL)
		}
	case <-time.After(time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore("")
	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	go store.SetBreadcrumbs(map[string][]Crumb{"status": nil})

	received := 0
	timeout := time.After(time.Second)
	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore("")
	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after Unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore("")
	_ = store.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			store.UpdateDiscovery(Discovery{Reachable: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("UpdateDiscovery() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore("")
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.UpdateDiscovery(Discovery{Reachable: j%2 == 0})
				store.SetBreadcrumbs(map[string][]Crumb{"status": {{Text: "Home"}}})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Get()
			}
		}()
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(5 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	if got := store.Get().Checks; got != 500 {
		t.Errorf("Checks = %d, want 500", got)
	}
}
