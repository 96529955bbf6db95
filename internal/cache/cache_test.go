package cache

import (
	"sync"
	"testing"
	"time"

	"ghostwatch/pkg/domain"
)

func TestCurrentBeforeReplace(t *testing.T) {
	if _, ok := New().Current(); ok {
		t.Fatalf("expected no view before first Replace")
	}
}

func TestReplaceSwapsWholeView(t *testing.T) {
	c := New()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Replace(domain.View{RefreshedAt: at, Departed: []domain.ChangeEvent{{EntityID: 1}}})
	c.Replace(domain.View{RefreshedAt: at.Add(time.Hour)})
	v, ok := c.Current()
	if !ok || !v.RefreshedAt.Equal(at.Add(time.Hour)) || len(v.Departed) != 0 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestSubscribeCoalescesAndCancels(t *testing.T) {
	c := New()
	ch, cancel := c.Subscribe()
	c.Replace(domain.View{})
	c.Replace(domain.View{})
	select {
	case <-ch:
	default:
		t.Fatalf("expected notification")
	}
	select {
	case <-ch:
		t.Fatalf("notifications should coalesce")
	default:
	}
	cancel()
	cancel()
	if c.Subscribers() != 0 {
		t.Fatalf("subscription not removed")
	}
	c.Replace(domain.View{})
	select {
	case <-ch:
		t.Fatalf("cancelled subscriber notified")
	default:
	}
}

// Readers must never observe a view whose parts come from different
// replacements.
func TestConcurrentReadersSeeConsistentViews(t *testing.T) {
	c := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 500 {
			n := uint32(i)
			c.Replace(domain.View{
				RefreshedAt: base.Add(time.Duration(i) * time.Second),
				Appeared:    []domain.ChangeEvent{{EntityID: n}},
				Departed:    []domain.ChangeEvent{{EntityID: n}},
			})
		}
		close(done)
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				v, ok := c.Current()
				if !ok {
					continue
				}
				id := uint32(v.RefreshedAt.Sub(base) / time.Second)
				if v.Appeared[0].EntityID != id || v.Departed[0].EntityID != id {
					t.Errorf("torn view: %+v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}
