// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

// Parallelize divides items into one contiguous range per CPU core and runs fn
// on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	_ = Run(items, 0, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// Run divides items into contiguous ranges and runs fn on each range. Below
// threshold items the whole range is processed on the calling goroutine. A
// panic inside a worker is recovered and returned as a PanicError; when several
// ranges fail the first error in range order is returned.
func Run(items int, threshold int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	if items <= threshold {
		return runRange(fn, 0, items)
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers
	errs := make([]error, numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(slot, s, e int) {
			defer wg.Done()
			errs[slot] = runRange(fn, s, e)
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func runRange(fn func(start, end int) error, start, end int) (err error) {
	defer scerr.Recover(&err, "parallel.Run")
	return fn(start, end)
}
