package storage

import (
	"sync"
	"time"
)

// SubscribeQuotations polls the quotation collection revision and invokes cb
// with the full document set whenever it changes. The returned stop function
// tears the subscription down and guarantees cb is never invoked after it
// returns. The callback also fires once immediately with the current state.
func (d *DB) SubscribeQuotations(interval time.Duration, cb func([]map[string]any)) (func(), error) {
	return d.subscribe(interval, d.QuotationRev, d.QuotationDocs, cb)
}

// SubscribeOrders is the order-collection counterpart of SubscribeQuotations.
func (d *DB) SubscribeOrders(interval time.Duration, cb func([]map[string]any)) (func(), error) {
	return d.subscribe(interval, d.OrderRev, d.OrderDocs, cb)
}

func (d *DB) subscribe(interval time.Duration, rev func() (int64, error), docs func() ([]map[string]any, error), cb func([]map[string]any)) (func(), error) {
	lastRev, err := rev()
	if err != nil {
		return nil, err
	}
	initial, err := docs()
	if err != nil {
		return nil, err
	}
	cb(initial)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			current, err := rev()
			if err != nil || current == lastRev {
				continue
			}
			lastRev = current

			snapshot, err := docs()
			if err != nil {
				continue
			}
			cb(snapshot)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
	return stop, nil
}
