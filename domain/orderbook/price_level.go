package orderbook

import "github.com/shopspring/decimal"

// PriceLevel is a FIFO queue at a single price.
type PriceLevel struct {
	Price decimal.Decimal

	head *Order
	tail *Order

	TotalQty   int64
	OrderCount int
}

func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.Qty
	p.OrderCount++
}

// Unlink removes o from anywhere in the queue.
func (p *PriceLevel) Unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil

	p.TotalQty -= o.Qty
	p.OrderCount--
}

// Fill reduces the head order by qty and pops it once exhausted.
func (p *PriceLevel) Fill(qty int64) {
	h := p.head
	h.Qty -= qty
	p.TotalQty -= qty
	if h.Qty == 0 {
		p.Unlink(h)
	}
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

func (p *PriceLevel) Head() *Order {
	return p.head
}

// Each visits orders oldest first until fn returns false.
func (p *PriceLevel) Each(fn func(*Order) bool) bool {
	for o := p.head; o != nil; o = o.next {
		if !fn(o) {
			return false
		}
	}
	return true
}
