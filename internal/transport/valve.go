package transport

import (
	"sync/atomic"

	"github.com/juju/ratelimit"
)

// Valve limits the transmission rates of a connection and counts what went through it.
// rx is what is read from the peer, tx is what is written to it.
type Valve struct {
	rxtb atomic.Value // *ratelimit.Bucket
	txtb atomic.Value // *ratelimit.Bucket

	rx *int64
	tx *int64
}

func MakeValve(rxRate, txRate int64) *Valve {
	var rx, tx int64
	v := &Valve{
		rx: &rx,
		tx: &tx,
	}
	v.SetRxRate(rxRate)
	v.SetTxRate(txRate)
	return v
}

const unlimitedRate = 1<<63 - 1

// MakeUnlimitedValve only counts
func MakeUnlimitedValve() *Valve { return MakeValve(unlimitedRate, unlimitedRate) }

// RateOrUnlimited maps a configured rate, where 0 or less means no limit, to a bucket rate
func RateOrUnlimited(rate int64) int64 {
	if rate <= 0 {
		return unlimitedRate
	}
	return rate
}

func (v *Valve) SetRxRate(rate int64) { v.rxtb.Store(ratelimit.NewBucketWithRate(float64(rate), rate)) }
func (v *Valve) SetTxRate(rate int64) { v.txtb.Store(ratelimit.NewBucketWithRate(float64(rate), rate)) }
func (v *Valve) rxWait(n int)         { v.rxtb.Load().(*ratelimit.Bucket).Wait(int64(n)) }
func (v *Valve) txWait(n int)         { v.txtb.Load().(*ratelimit.Bucket).Wait(int64(n)) }
func (v *Valve) AddRx(n int64)        { atomic.AddInt64(v.rx, n) }
func (v *Valve) AddTx(n int64)        { atomic.AddInt64(v.tx, n) }
func (v *Valve) GetRx() int64         { return atomic.LoadInt64(v.rx) }
func (v *Valve) GetTx() int64         { return atomic.LoadInt64(v.tx) }
func (v *Valve) Nullify() (int64, int64) {
	rx := atomic.SwapInt64(v.rx, 0)
	tx := atomic.SwapInt64(v.tx, 0)
	return rx, tx
}
