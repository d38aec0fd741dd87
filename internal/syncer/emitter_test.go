package syncer

import (
	"testing"

	"toursync/internal"
)

func TestChannelEmitterNeverBlocks(t *testing.T) {
	ch := make(chan internal.Event, 1)
	emit := ChannelEmitter(ch)

	// Second and third sends hit a full channel and must be dropped, not
	// stall the run.
	emit(internal.Event{Type: internal.EventProgress, Processed: 1})
	emit(internal.Event{Type: internal.EventProgress, Processed: 2})
	emit(internal.Event{Type: internal.EventComplete, Processed: 3})

	got := <-ch
	if got.Processed != 1 {
		t.Fatalf("first event: %+v", got)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected buffered event: %+v", e)
	default:
	}
}
