package notify

import (
	"testing"
	"time"
)

func TestQueueEvictsOldestWhenFull(t *testing.T) {
	q := NewQueue(2, time.Minute)
	defer q.Close()

	first := q.Show(KindInfo, "one")
	q.Show(KindInfo, "two")
	third := q.Show(KindError, "three")

	entries := q.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "two" || entries[1].ID != third {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if q.Dismiss(first) {
		t.Fatalf("evicted entry must not be dismissable")
	}
}

func TestQueueAutoDismissPerEntry(t *testing.T) {
	q := NewQueue(5, time.Hour)
	defer q.Close()

	short := q.ShowFor(KindSuccess, "saved", 20*time.Millisecond)
	long := q.Show(KindInfo, "sticky")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries := q.Entries()
		if len(entries) == 1 {
			if entries[0].ID != long {
				t.Fatalf("expected the long entry to remain, got %+v", entries)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("entry %d was not dismissed by its timer", short)
}

func TestQueueSubscribeReceivesLatestSnapshot(t *testing.T) {
	q := NewQueue(5, time.Minute)
	ch, cancel := q.Subscribe()

	q.Show(KindInfo, "a")
	id := q.Show(KindInfo, "b")
	q.Dismiss(id)

	select {
	case snap := <-ch:
		if len(snap) != 1 || snap[0].Message != "a" {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot delivered")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	q.Close()
	if q.Show(KindInfo, "late") != 0 {
		t.Fatalf("show after close must be rejected")
	}
}
