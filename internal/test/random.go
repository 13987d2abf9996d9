package test

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomAmount returns a positive amount with two decimal places, at most maxUnits.
func RandomAmount(maxUnits int) decimal.Decimal {
	if maxUnits <= 0 {
		maxUnits = 1
	}
	cents := 1 + RandomIntn(maxUnits*100)
	return decimal.New(int64(cents), -2)
}

// RandomIntn returns a pseudo-random int in [0, n).
func RandomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}
