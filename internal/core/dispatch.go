package core

import (
	"context"
	"fmt"
	"sync"
)

// Outcome is the terminal result of one device's share of an operation.
// Exactly one of Payload or Err is meaningful.
type Outcome struct {
	DeviceID string
	Payload  any
	Err      error
}

// dispatchAll runs fn once per target concurrently and waits for every
// invocation to finish before returning. Errors and panics inside fn are
// captured at that target's boundary as a failed outcome; one device never
// cancels or skips another. The returned map holds exactly one outcome per
// target.
func dispatchAll(ctx context.Context, targets []Target, fn func(ctx context.Context, target Target) (any, error)) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		t := target
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := runGuarded(ctx, t, fn)
			mu.Lock()
			outcomes[t.DeviceID] = Outcome{DeviceID: t.DeviceID, Payload: payload, Err: err}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outcomes
}

func runGuarded(ctx context.Context, target Target, fn func(ctx context.Context, target Target) (any, error)) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("panic in device handler: %v", r)
		}
	}()
	return fn(ctx, target)
}
