package workflow

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// ledger semantics:
// - a replayed payment confirmation settles an order exactly once
// - the (order, referral) pair is credited at most once
// - payouts and credits serialized per affiliate never lose or duplicate money
//
// Full DB integration coverage lives in the docker-gated regression tests.

type fakeLedger struct {
	mu        sync.Mutex
	affMu     map[int]*sync.Mutex
	settled   map[string]bool
	credited  map[string]bool
	earned    map[int]decimal.Decimal
	paidOut   map[int]decimal.Decimal
	decrement int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		affMu:    map[int]*sync.Mutex{},
		settled:  map[string]bool{},
		credited: map[string]bool{},
		earned:   map[int]decimal.Decimal{},
		paidOut:  map[int]decimal.Decimal{},
	}
}

func (l *fakeLedger) affiliateLock(affiliateId int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.affMu[affiliateId]
	if m == nil {
		m = &sync.Mutex{}
		l.affMu[affiliateId] = m
	}
	return m
}

// settle mirrors ConfirmAndSettle: the conditional status flip gates all side
// effects, so a duplicate call is a no-op.
func (l *fakeLedger) settle(orderId string, affiliateId int, referralCode string, amount decimal.Decimal) bool {
	l.mu.Lock()
	if l.settled[orderId] {
		l.mu.Unlock()
		return false
	}
	l.settled[orderId] = true
	l.decrement++
	l.mu.Unlock()

	if referralCode == "" {
		return true
	}
	m := l.affiliateLock(affiliateId)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	pair := orderId + "|" + referralCode
	if l.credited[pair] {
		return true
	}
	l.credited[pair] = true
	l.earned[affiliateId] = l.earned[affiliateId].Add(amount)
	return true
}

// payout mirrors PayAffiliate: read, record, reset under the affiliate lock.
func (l *fakeLedger) payout(affiliateId int) decimal.Decimal {
	m := l.affiliateLock(affiliateId)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.earned[affiliateId]
	if !balance.IsPositive() {
		return decimal.Zero
	}
	l.paidOut[affiliateId] = l.paidOut[affiliateId].Add(balance)
	l.earned[affiliateId] = decimal.Zero
	return balance
}

func TestSettlement_DuplicateConfirmation_SettlesOnce(t *testing.T) {
	l := newFakeLedger()
	amount := decimal.RequireFromString("50")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.settle("order-1", 7, "AFF-7-1-1", amount)
		}()
	}
	wg.Wait()

	if l.decrement != 1 {
		t.Fatalf("expected exactly 1 stock decrement, got %d", l.decrement)
	}
	if !l.earned[7].Equal(amount) {
		t.Fatalf("expected a single credit of %s, got %s", amount, l.earned[7])
	}
}

func TestSettlement_DistinctOrdersSameCode_EachCredited(t *testing.T) {
	l := newFakeLedger()
	amount := decimal.RequireFromString("10")

	l.settle("order-1", 7, "AFF-7-1-1", amount)
	l.settle("order-2", 7, "AFF-7-1-1", amount)

	if !l.earned[7].Equal(decimal.RequireFromString("20")) {
		t.Fatalf("two distinct orders must credit twice, got %s", l.earned[7])
	}
}

func TestPayout_ConcurrentWithCredits_NeverLosesMoney(t *testing.T) {
	l := newFakeLedger()
	amount := decimal.RequireFromString("5")
	const orders = 40

	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.settle(orderName(n), 3, "AFF-3-1-1", amount)
		}(i)
	}
	payouts := decimal.Zero
	var payoutMu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := l.payout(3)
			payoutMu.Lock()
			payouts = payouts.Add(got)
			payoutMu.Unlock()
		}()
	}
	wg.Wait()

	final := l.payout(3)
	payouts = payouts.Add(final)

	want := amount.Mul(decimal.NewFromInt(orders))
	if !payouts.Add(l.earned[3]).Equal(want) {
		t.Fatalf("paid %s + outstanding %s, want total %s", payouts, l.earned[3], want)
	}
	if !l.earned[3].Equal(decimal.Zero) {
		t.Fatalf("final payout must reset the balance, got %s", l.earned[3])
	}
}

func TestPayout_EmptyBalance_PaysNothing(t *testing.T) {
	l := newFakeLedger()
	if got := l.payout(9); !got.Equal(decimal.Zero) {
		t.Fatalf("payout with no balance must be zero, got %s", got)
	}
}

func orderName(n int) string {
	return "order-" + string(rune('A'+n%26)) + "-" + string(rune('0'+n/26))
}
