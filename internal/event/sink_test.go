package event

import (
	"testing"
	"time"
)

type recordingSink struct {
	facts []Fact
}

func (r *recordingSink) Publish(fact Fact) {
	r.facts = append(r.facts, fact)
}

func TestFanout(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	fanout := NewFanout(a, nil, b)

	fact := &DepositFact{
		Header:     Header{Kind: KindDeposit, Seq: 1, Ts: time.Now()},
		Token:      "GOLD",
		Account:    "alice",
		Amount:     100,
		NewBalance: 100,
	}
	fanout.Publish(fact)

	if len(a.facts) != 1 || len(b.facts) != 1 {
		t.Fatalf("fanout delivered a=%d b=%d, want 1 each", len(a.facts), len(b.facts))
	}
	if a.facts[0].GetKind() != KindDeposit || a.facts[0].GetSeq() != 1 {
		t.Errorf("unexpected fact: %+v", a.facts[0])
	}
}
