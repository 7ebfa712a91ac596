package pipeline

import (
	"sync"
	"testing"

	"github.com/scannedreality/xrvideo/backend"
)

func TestPromiseFulfillThenAbortIsNoOp(t *testing.T) {
	p := NewTextureFramePromise()
	p.FulfillPicture(backend.Picture{FrameIndex: 3, Width: 4, Height: 4})
	p.Abort() // must not override the first settlement

	aborted, kind, pic, _ := p.Wait()
	if aborted {
		t.Errorf("promise reported aborted after an earlier Fulfill")
	}
	if kind != textureKindPicture {
		t.Errorf("kind = %v, want textureKindPicture", kind)
	}
	if pic.FrameIndex != 3 {
		t.Errorf("pic.FrameIndex = %d, want 3", pic.FrameIndex)
	}
}

func TestPromiseAbortThenFulfillIsNoOp(t *testing.T) {
	p := NewTextureFramePromise()
	p.Abort()
	p.FulfillPicture(backend.Picture{FrameIndex: 7})

	aborted, _, pic, _ := p.Wait()
	if !aborted {
		t.Errorf("promise reported fulfilled after an earlier Abort")
	}
	if pic.FrameIndex != 0 {
		t.Errorf("pic should be the zero value once aborted, got %+v", pic)
	}
}

// TestPromiseSettlesExactlyOnce exercises the single-fulfillment invariant under
// concurrent settlement attempts: over 50 rounds, two goroutines race to settle the
// same promise, the first one to win determines the permanent outcome, and Wait
// never observes a mix of the two.
func TestPromiseSettlesExactlyOnce(t *testing.T) {
	const attempts = 50
	for i := 0; i < attempts; i++ {
		p := NewTextureFramePromise()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.FulfillPicture(backend.Picture{FrameIndex: 1})
		}()
		go func() {
			defer wg.Done()
			p.Abort()
		}()
		wg.Wait()

		// Whichever settled first, a second Wait call must return the same outcome as
		// the first -- the state transition is permanent.
		aborted1, kind1, _, _ := p.Wait()
		aborted2, kind2, _, _ := p.Wait()
		if aborted1 != aborted2 || kind1 != kind2 {
			t.Fatalf("promise outcome changed between two Wait calls: (%v,%v) vs (%v,%v)",
				aborted1, kind1, aborted2, kind2)
		}
	}
}

func TestPromiseWaitBlocksUntilSettled(t *testing.T) {
	p := NewTextureFramePromise()
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned before the promise was settled")
	default:
	}

	p.FulfillEmpty()
	<-done
}
