package pricing

import (
	"container/list"
	"errors"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrDuplicateLine = errors.New("line already in draft")
	ErrLineNotFound  = errors.New("line not found in draft")
)

// Draft is an invoice being assembled. Lines are kept in insertion order and
// addressed by id. A Draft is not safe for concurrent use.
type Draft struct {
	order    *list.List
	index    map[uuid.UUID]*list.Element
	discount *Discount

	version  uint64
	computed *InvoiceComputation
	at       uint64
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{
		order: list.New(),
		index: make(map[uuid.UUID]*list.Element),
	}
}

// Add appends a line.
func (d *Draft) Add(line BillingLine) error {
	if _, ok := d.index[line.ID]; ok {
		return ErrDuplicateLine
	}
	d.index[line.ID] = d.order.PushBack(line)
	d.version++
	return nil
}

// Get returns the line with the given id.
func (d *Draft) Get(id uuid.UUID) (BillingLine, bool) {
	el, ok := d.index[id]
	if !ok {
		return BillingLine{}, false
	}
	return el.Value.(BillingLine), true
}

// Update replaces a line in place with fn's result. The line keeps its id
// and its position.
func (d *Draft) Update(id uuid.UUID, fn func(BillingLine) BillingLine) error {
	el, ok := d.index[id]
	if !ok {
		return ErrLineNotFound
	}
	updated := fn(el.Value.(BillingLine))
	updated.ID = id
	el.Value = updated
	d.version++
	return nil
}

// Remove drops a line. It reports whether the line was present.
func (d *Draft) Remove(id uuid.UUID) bool {
	el, ok := d.index[id]
	if !ok {
		return false
	}
	d.order.Remove(el)
	delete(d.index, id)
	d.version++
	return true
}

// Len returns the number of lines.
func (d *Draft) Len() int {
	return d.order.Len()
}

// Lines returns the lines in insertion order.
func (d *Draft) Lines() []BillingLine {
	lines := make([]BillingLine, 0, d.order.Len())
	for el := d.order.Front(); el != nil; el = el.Next() {
		lines = append(lines, el.Value.(BillingLine))
	}
	return lines
}

// SetDiscount sets or clears (nil) the draft discount.
func (d *Draft) SetDiscount(discount *Discount) {
	if discount != nil {
		cp := *discount
		discount = &cp
	}
	d.discount = discount
	d.version++
}

// Discount returns the current discount, or nil.
func (d *Draft) Discount() *Discount {
	return d.discount
}

// Compute prices the draft. The result is reused until the draft changes;
// every call gets its own copy of the lines.
func (d *Draft) Compute() InvoiceComputation {
	if d.computed == nil || d.at != d.version {
		c := ComputeInvoice(d.Lines(), d.discount)
		d.computed = &c
		d.at = d.version
	}
	c := *d.computed
	c.Lines = slices.Clone(c.Lines)
	return c
}
