package orderbook

// Tree is an order statistics tree: a red-black tree keyed by unit price
// where every node aggregates a FIFO queue of orders resting at that
// price. Nodes and orders live in flat arenas indexed by int32 slots;
// slot 0 is the NIL sentinel on both arenas and freed slots are reused
// through free lists. Each node maintains subtree amount/order totals so
// cumulative-amount queries run in O(log n).
type Tree struct {
	nodes     []treeNode
	freeNodes []int32

	orders     []Order
	freeOrders []int32
	slotByID   map[uint64]int32

	root int32
	size int
}

type color uint8

const (
	red   color = 0
	black color = 1
)

// nilIdx is the sentinel slot in both arenas.
const nilIdx int32 = 0

type treeNode struct {
	price  int64
	color  color
	left   int32
	right  int32
	parent int32

	// FIFO queue of order slots at this price
	head       int32
	tail       int32
	orderCount int32

	// totalAmount is the sum of remaining amounts queued at this node;
	// subAmount/subOrders aggregate the whole subtree rooted here.
	totalAmount int64
	subAmount   int64
	subOrders   int32
}

// NewTree constructs an empty tree with a black sentinel at slot 0.
func NewTree() *Tree {
	t := &Tree{
		nodes:    make([]treeNode, 1, 64),
		orders:   make([]Order, 1, 256),
		slotByID: make(map[uint64]int32),
	}
	t.nodes[nilIdx].color = black
	t.root = nilIdx
	return t
}

// Size returns the number of distinct prices present.
func (t *Tree) Size() int { return t.size }

// OrderCount returns the number of resting orders across all prices.
func (t *Tree) OrderCount() int { return int(t.nodes[t.root].subOrders) }

// TotalAmount returns the sum of all resting amounts.
func (t *Tree) TotalAmount() int64 { return t.nodes[t.root].subAmount }

// ValueExists reports whether any order rests at the given price.
func (t *Tree) ValueExists(price int64) bool {
	return t.searchNode(price) != nilIdx
}

// AmountAt returns the total resting amount at one price.
func (t *Tree) AmountAt(price int64) int64 {
	n := t.searchNode(price)
	if n == nilIdx {
		return 0
	}
	return t.nodes[n].totalAmount
}

// First returns the minimum price present.
func (t *Tree) First() (int64, bool) {
	n := t.minNode(t.root)
	if n == nilIdx {
		return 0, false
	}
	return t.nodes[n].price, true
}

// Last returns the maximum price present.
func (t *Tree) Last() (int64, bool) {
	n := t.maxNode(t.root)
	if n == nilIdx {
		return 0, false
	}
	return t.nodes[n].price, true
}

// Next returns the smallest price strictly greater than the argument.
func (t *Tree) Next(price int64) (int64, bool) {
	n := t.root
	succ := nilIdx
	for n != nilIdx {
		if price < t.nodes[n].price {
			succ = n
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	if succ == nilIdx {
		return 0, false
	}
	return t.nodes[succ].price, true
}

// Prev returns the largest price strictly smaller than the argument.
func (t *Tree) Prev(price int64) (int64, bool) {
	n := t.root
	pred := nilIdx
	for n != nilIdx {
		if price > t.nodes[n].price {
			pred = n
			n = t.nodes[n].right
		} else {
			n = t.nodes[n].left
		}
	}
	if pred == nilIdx {
		return 0, false
	}
	return t.nodes[pred].price, true
}

// Get returns a copy of the resting order with the given id.
func (t *Tree) Get(id uint64) (Order, bool) {
	slot, ok := t.slotByID[id]
	if !ok {
		return Order{}, false
	}
	return t.orders[slot], true
}

// Insert appends the order to the FIFO queue at o.UnitPrice, creating
// and rebalancing a new price node if necessary.
func (t *Tree) Insert(o Order) error {
	if o.Amount <= 0 || o.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	if o.UnitPrice <= 0 || o.UnitPrice > MaxUnitPrice {
		return ErrInvalidPrice
	}
	if _, ok := t.slotByID[o.ID]; ok {
		return ErrDuplicateOrderID
	}
	n := t.upsertNode(o.UnitPrice)
	oi := t.allocOrder()
	o.next = nilIdx
	o.prev = t.nodes[n].tail
	o.node = n
	t.orders[oi] = o

	if t.nodes[n].tail == nilIdx {
		t.nodes[n].head = oi
	} else {
		t.orders[t.nodes[n].tail].next = oi
	}
	t.nodes[n].tail = oi
	t.nodes[n].orderCount++
	t.nodes[n].totalAmount += o.Amount
	t.updateUp(n)

	t.slotByID[o.ID] = oi
	return nil
}

// Remove deletes one order from the queue at the given price. The node
// is deleted and the tree rebalanced when its queue becomes empty.
func (t *Tree) Remove(price int64, id uint64) (Order, error) {
	slot, ok := t.slotByID[id]
	if !ok || t.orders[slot].UnitPrice != price {
		return Order{}, ErrNoOrderExists
	}
	o := t.orders[slot]
	t.unlinkOrder(slot)
	n := o.node
	t.nodes[n].totalAmount -= o.Amount
	if t.nodes[n].head == nilIdx {
		t.deleteNode(n)
	} else {
		t.updateUp(n)
	}
	o.next, o.prev, o.node = nilIdx, nilIdx, nilIdx
	return o, nil
}

// Walk visits every resting order in price order (ascending when asc is
// true), FIFO within a price. Returning false stops the walk.
func (t *Tree) Walk(asc bool, fn func(o Order) bool) {
	var n int32
	if asc {
		n = t.minNode(t.root)
	} else {
		n = t.maxNode(t.root)
	}
	for n != nilIdx {
		for oi := t.nodes[n].head; oi != nilIdx; oi = t.orders[oi].next {
			if !fn(t.orders[oi]) {
				return
			}
		}
		if asc {
			n = t.nextNode(n)
		} else {
			n = t.prevNode(n)
		}
	}
}

// WalkPrices visits every price ascending with its aggregate amount.
func (t *Tree) WalkPrices(fn func(price, amount int64) bool) {
	for n := t.minNode(t.root); n != nilIdx; n = t.nextNode(n) {
		if !fn(t.nodes[n].price, t.nodes[n].totalAmount) {
			return
		}
	}
}

// AmountUpTo returns the total resting amount at prices <= limit.
// A limit of 0 means unbounded.
func (t *Tree) AmountUpTo(limit int64) int64 {
	if limit <= 0 {
		return t.nodes[t.root].subAmount
	}
	var sum int64
	n := t.root
	for n != nilIdx {
		nd := &t.nodes[n]
		if nd.price <= limit {
			sum += t.nodes[nd.left].subAmount + nd.totalAmount
			n = nd.right
		} else {
			n = nd.left
		}
	}
	return sum
}

// AmountFrom returns the total resting amount at prices >= limit.
// A limit of 0 means unbounded.
func (t *Tree) AmountFrom(limit int64) int64 {
	if limit <= 0 {
		return t.nodes[t.root].subAmount
	}
	var sum int64
	n := t.root
	for n != nilIdx {
		nd := &t.nodes[n]
		if nd.price >= limit {
			sum += t.nodes[nd.right].subAmount + nd.totalAmount
			n = nd.left
		} else {
			n = nd.right
		}
	}
	return sum
}

/******************** Drop primitives ********************/

// Taken records the consumption of one resting order during a drop.
type Taken struct {
	OrderID       uint64
	Maker         string
	UnitPrice     int64
	Amount        int64
	IsPreOrder    bool
	FullyConsumed bool
}

// DropResult is the outcome of an amount-bounded drop. Amount may be
// smaller than the requested target when the limit price was crossed or
// the tree was exhausted; that is a normal result, not an error.
type DropResult struct {
	Amount      int64
	FutureValue int64
	Taken       []Taken
	LastPrice   int64
}

// DropFromFirst consumes orders starting at the minimum price until the
// target present-value amount is reached, a node's price exceeds
// limitPrice (0 = unbounded), or the tree is exhausted.
func (t *Tree) DropFromFirst(target, limitPrice int64) DropResult {
	return t.drop(true, target, limitPrice, false)
}

// DropFromLast is the symmetric walk from the maximum price; the walk
// stops when a node's price falls below limitPrice.
func (t *Tree) DropFromLast(target, limitPrice int64) DropResult {
	return t.drop(false, target, limitPrice, false)
}

// DropFromFirstByFV is DropFromFirst with the target measured in future
// value at each node's price.
func (t *Tree) DropFromFirstByFV(targetFV, limitPrice int64) DropResult {
	return t.drop(true, targetFV, limitPrice, true)
}

// DropFromLastByFV is DropFromLast with the target measured in future
// value at each node's price.
func (t *Tree) DropFromLastByFV(targetFV, limitPrice int64) DropResult {
	return t.drop(false, targetFV, limitPrice, true)
}

// EstimateDropFromFirst reports the amount DropFromFirst would consume,
// without mutating the tree. O(log n) via the subtree amount aggregates.
func (t *Tree) EstimateDropFromFirst(target, limitPrice int64) int64 {
	avail := t.AmountUpTo(limitPrice)
	if avail < target {
		return avail
	}
	return target
}

// EstimateDropFromLast is the read-only counterpart of DropFromLast.
func (t *Tree) EstimateDropFromLast(target, limitPrice int64) int64 {
	avail := t.AmountFrom(limitPrice)
	if avail < target {
		return avail
	}
	return target
}

func (t *Tree) drop(fromFirst bool, target, limitPrice int64, byFV bool) DropResult {
	var res DropResult
	remaining := target

	for remaining > 0 {
		var n int32
		if fromFirst {
			n = t.minNode(t.root)
		} else {
			n = t.maxNode(t.root)
		}
		if n == nilIdx {
			break
		}
		price := t.nodes[n].price
		if limitPrice > 0 {
			if fromFirst && price > limitPrice {
				break
			}
			if !fromFirst && price < limitPrice {
				break
			}
		}

		for remaining > 0 {
			oi := t.nodes[n].head
			if oi == nilIdx {
				break
			}
			o := &t.orders[oi]

			cost := o.Amount
			if byFV {
				cost = FutureValueOf(o.Amount, price)
			}

			if cost <= remaining {
				// whole order consumed
				take := o.Amount
				remaining -= cost
				res.Amount += take
				res.FutureValue += FutureValueOf(take, price)
				res.LastPrice = price
				res.Taken = append(res.Taken, Taken{
					OrderID:       o.ID,
					Maker:         o.Maker,
					UnitPrice:     price,
					Amount:        take,
					IsPreOrder:    o.IsPreOrder,
					FullyConsumed: true,
				})
				t.unlinkOrder(oi)
				t.nodes[n].totalAmount -= take
				continue
			}

			// boundary order survives with a reduced amount
			take := remaining
			fv := FutureValueOf(take, price)
			if byFV {
				take = PresentValueOf(remaining, price)
				if take > o.Amount {
					take = o.Amount
				}
				fv = remaining
			}
			remaining = 0
			if take > 0 {
				o.Amount -= take
				t.nodes[n].totalAmount -= take
				res.Amount += take
				res.FutureValue += fv
				res.LastPrice = price
				res.Taken = append(res.Taken, Taken{
					OrderID:       o.ID,
					Maker:         o.Maker,
					UnitPrice:     price,
					Amount:        take,
					IsPreOrder:    o.IsPreOrder,
					FullyConsumed: false,
				})
			}
		}

		if t.nodes[n].head == nilIdx {
			t.deleteNode(n)
		} else {
			t.updateUp(n)
		}
	}
	return res
}

/******************** Order arena ********************/

func (t *Tree) allocOrder() int32 {
	if k := len(t.freeOrders); k > 0 {
		oi := t.freeOrders[k-1]
		t.freeOrders = t.freeOrders[:k-1]
		return oi
	}
	t.orders = append(t.orders, Order{})
	return int32(len(t.orders) - 1)
}

// unlinkOrder detaches the order slot from its node queue and releases
// the slot. Node totalAmount is the caller's responsibility.
func (t *Tree) unlinkOrder(oi int32) {
	o := &t.orders[oi]
	n := o.node
	if o.prev != nilIdx {
		t.orders[o.prev].next = o.next
	} else {
		t.nodes[n].head = o.next
	}
	if o.next != nilIdx {
		t.orders[o.next].prev = o.prev
	} else {
		t.nodes[n].tail = o.prev
	}
	t.nodes[n].orderCount--
	delete(t.slotByID, o.ID)
	t.orders[oi] = Order{}
	t.freeOrders = append(t.freeOrders, oi)
}

/******************** Node arena ********************/

func (t *Tree) allocNode() int32 {
	if k := len(t.freeNodes); k > 0 {
		n := t.freeNodes[k-1]
		t.freeNodes = t.freeNodes[:k-1]
		return n
	}
	t.nodes = append(t.nodes, treeNode{})
	return int32(len(t.nodes) - 1)
}

func (t *Tree) releaseNode(n int32) {
	t.nodes[n] = treeNode{}
	t.freeNodes = append(t.freeNodes, n)
}

/******************** Aggregates ********************/

func (t *Tree) recompute(n int32) {
	if n == nilIdx {
		return
	}
	nd := &t.nodes[n]
	nd.subAmount = t.nodes[nd.left].subAmount + t.nodes[nd.right].subAmount + nd.totalAmount
	nd.subOrders = t.nodes[nd.left].subOrders + t.nodes[nd.right].subOrders + nd.orderCount
}

func (t *Tree) updateUp(n int32) {
	for n != nilIdx {
		t.recompute(n)
		n = t.nodes[n].parent
	}
}

/******************** Red-black internals ********************/

func (t *Tree) searchNode(price int64) int32 {
	n := t.root
	for n != nilIdx {
		if price < t.nodes[n].price {
			n = t.nodes[n].left
		} else if price > t.nodes[n].price {
			n = t.nodes[n].right
		} else {
			return n
		}
	}
	return nilIdx
}

func (t *Tree) minNode(n int32) int32 {
	if n == nilIdx {
		return nilIdx
	}
	for t.nodes[n].left != nilIdx {
		n = t.nodes[n].left
	}
	return n
}

func (t *Tree) maxNode(n int32) int32 {
	if n == nilIdx {
		return nilIdx
	}
	for t.nodes[n].right != nilIdx {
		n = t.nodes[n].right
	}
	return n
}

func (t *Tree) nextNode(n int32) int32 {
	if n == nilIdx {
		return nilIdx
	}
	if t.nodes[n].right != nilIdx {
		return t.minNode(t.nodes[n].right)
	}
	p := t.nodes[n].parent
	for p != nilIdx && n == t.nodes[p].right {
		n = p
		p = t.nodes[p].parent
	}
	return p
}

func (t *Tree) prevNode(n int32) int32 {
	if n == nilIdx {
		return nilIdx
	}
	if t.nodes[n].left != nilIdx {
		return t.maxNode(t.nodes[n].left)
	}
	p := t.nodes[n].parent
	for p != nilIdx && n == t.nodes[p].left {
		n = p
		p = t.nodes[p].parent
	}
	return p
}

// upsertNode returns the node slot for price, creating and rebalancing
// a fresh node if none exists.
func (t *Tree) upsertNode(price int64) int32 {
	y := nilIdx
	x := t.root
	for x != nilIdx {
		y = x
		if price < t.nodes[x].price {
			x = t.nodes[x].left
		} else if price > t.nodes[x].price {
			x = t.nodes[x].right
		} else {
			return x
		}
	}

	z := t.allocNode()
	t.nodes[z] = treeNode{
		price:  price,
		color:  red,
		left:   nilIdx,
		right:  nilIdx,
		parent: y,
	}
	if y == nilIdx {
		t.root = z
	} else if price < t.nodes[y].price {
		t.nodes[y].left = z
	} else {
		t.nodes[y].right = z
	}
	t.size++
	t.insertFixup(z)
	return z
}

func (t *Tree) leftRotate(x int32) {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if t.nodes[y].left != nilIdx {
		t.nodes[t.nodes[y].left].parent = x
	}
	t.nodes[y].parent = t.nodes[x].parent
	if t.nodes[x].parent == nilIdx {
		t.root = y
	} else if x == t.nodes[t.nodes[x].parent].left {
		t.nodes[t.nodes[x].parent].left = y
	} else {
		t.nodes[t.nodes[x].parent].right = y
	}
	t.nodes[y].left = x
	t.nodes[x].parent = y
	t.recompute(x)
	t.recompute(y)
}

func (t *Tree) rightRotate(y int32) {
	x := t.nodes[y].left
	t.nodes[y].left = t.nodes[x].right
	if t.nodes[x].right != nilIdx {
		t.nodes[t.nodes[x].right].parent = y
	}
	t.nodes[x].parent = t.nodes[y].parent
	if t.nodes[y].parent == nilIdx {
		t.root = x
	} else if y == t.nodes[t.nodes[y].parent].right {
		t.nodes[t.nodes[y].parent].right = x
	} else {
		t.nodes[t.nodes[y].parent].left = x
	}
	t.nodes[x].right = y
	t.nodes[y].parent = x
	t.recompute(y)
	t.recompute(x)
}

func (t *Tree) insertFixup(z int32) {
	for t.nodes[t.nodes[z].parent].color == red {
		p := t.nodes[z].parent
		g := t.nodes[p].parent
		if p == t.nodes[g].left {
			u := t.nodes[g].right
			if t.nodes[u].color == red {
				t.nodes[p].color = black
				t.nodes[u].color = black
				t.nodes[g].color = red
				z = g
			} else {
				if z == t.nodes[p].right {
					z = p
					t.leftRotate(z)
				}
				p = t.nodes[z].parent
				g = t.nodes[p].parent
				t.nodes[p].color = black
				t.nodes[g].color = red
				t.rightRotate(g)
			}
		} else {
			u := t.nodes[g].left
			if t.nodes[u].color == red {
				t.nodes[p].color = black
				t.nodes[u].color = black
				t.nodes[g].color = red
				z = g
			} else {
				if z == t.nodes[p].left {
					z = p
					t.rightRotate(z)
				}
				p = t.nodes[z].parent
				g = t.nodes[p].parent
				t.nodes[p].color = black
				t.nodes[g].color = red
				t.leftRotate(g)
			}
		}
	}
	t.nodes[t.root].color = black
}

func (t *Tree) transplant(u, v int32) {
	p := t.nodes[u].parent
	if p == nilIdx {
		t.root = v
	} else if u == t.nodes[p].left {
		t.nodes[p].left = v
	} else {
		t.nodes[p].right = v
	}
	t.nodes[v].parent = p
}

// deleteNode removes an empty price node and rebalances. The node's
// queue must already be empty.
func (t *Tree) deleteNode(z int32) {
	y := z
	yOrigColor := t.nodes[y].color
	var x int32

	if t.nodes[z].left == nilIdx {
		x = t.nodes[z].right
		t.transplant(z, x)
	} else if t.nodes[z].right == nilIdx {
		x = t.nodes[z].left
		t.transplant(z, x)
	} else {
		y = t.minNode(t.nodes[z].right)
		yOrigColor = t.nodes[y].color
		x = t.nodes[y].right
		if t.nodes[y].parent == z {
			t.nodes[x].parent = y
		} else {
			t.transplant(y, x)
			t.nodes[y].right = t.nodes[z].right
			t.nodes[t.nodes[y].right].parent = y
		}
		t.transplant(z, y)
		t.nodes[y].left = t.nodes[z].left
		t.nodes[t.nodes[y].left].parent = y
		t.nodes[y].color = t.nodes[z].color
	}

	t.updateUp(t.nodes[x].parent)

	if yOrigColor == black {
		t.deleteFixup(x)
	}
	t.nodes[nilIdx].parent = nilIdx
	t.size--
	t.releaseNode(z)
}

func (t *Tree) deleteFixup(x int32) {
	for x != t.root && t.nodes[x].color == black {
		p := t.nodes[x].parent
		if x == t.nodes[p].left {
			w := t.nodes[p].right
			if t.nodes[w].color == red {
				t.nodes[w].color = black
				t.nodes[p].color = red
				t.leftRotate(p)
				w = t.nodes[p].right
			}
			if t.nodes[t.nodes[w].left].color == black && t.nodes[t.nodes[w].right].color == black {
				t.nodes[w].color = red
				x = p
			} else {
				if t.nodes[t.nodes[w].right].color == black {
					t.nodes[t.nodes[w].left].color = black
					t.nodes[w].color = red
					t.rightRotate(w)
					w = t.nodes[p].right
				}
				t.nodes[w].color = t.nodes[p].color
				t.nodes[p].color = black
				t.nodes[t.nodes[w].right].color = black
				t.leftRotate(p)
				x = t.root
			}
		} else {
			w := t.nodes[p].left
			if t.nodes[w].color == red {
				t.nodes[w].color = black
				t.nodes[p].color = red
				t.rightRotate(p)
				w = t.nodes[p].left
			}
			if t.nodes[t.nodes[w].right].color == black && t.nodes[t.nodes[w].left].color == black {
				t.nodes[w].color = red
				x = p
			} else {
				if t.nodes[t.nodes[w].left].color == black {
					t.nodes[t.nodes[w].right].color = black
					t.nodes[w].color = red
					t.leftRotate(w)
					w = t.nodes[p].left
				}
				t.nodes[w].color = t.nodes[p].color
				t.nodes[p].color = black
				t.nodes[t.nodes[w].left].color = black
				t.rightRotate(p)
				x = t.root
			}
		}
	}
	t.nodes[x].color = black
}
