package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/retail-orders-backend/internal/gateway"
	"github.com/shinyyama/retail-orders-backend/internal/model"
	"github.com/shinyyama/retail-orders-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// store is an in-memory stand-in for the relational store. Transactions
// snapshot the mutable tables and restore them when fn fails.
type store struct {
	mu         sync.Mutex
	items      map[uint64]model.Item
	units      map[uint64]model.InventoryUnit
	customers  map[string]model.Customer
	orders     map[string]model.Order
	allocs     []model.OrderAllocation
	refs       map[string]model.PaymentRef
	events     map[string]model.WebhookEvent
	nextID     uint64
	txDepth    int
	commits    int
	rollbacks  int
	failCreate error
}

func newStore() *store {
	return &store{
		items:     map[uint64]model.Item{},
		units:     map[uint64]model.InventoryUnit{},
		customers: map[string]model.Customer{},
		orders:    map[string]model.Order{},
		refs:      map[string]model.PaymentRef{},
		events:    map[string]model.WebhookEvent{},
		nextID:    1000,
	}
}

func (s *store) id() uint64 {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	units  map[uint64]model.InventoryUnit
	orders map[string]model.Order
	allocs []model.OrderAllocation
	refs   map[string]model.PaymentRef
	events map[string]model.WebhookEvent
}

func (s *store) snapshot() snapshot {
	sn := snapshot{
		units:  map[uint64]model.InventoryUnit{},
		orders: map[string]model.Order{},
		allocs: append([]model.OrderAllocation{}, s.allocs...),
		refs:   map[string]model.PaymentRef{},
		events: map[string]model.WebhookEvent{},
	}
	for k, v := range s.units {
		sn.units[k] = v
	}
	for k, v := range s.orders {
		v.Details = append([]model.OrderDetail{}, v.Details...)
		v.Payments = append([]model.OrderPayment{}, v.Payments...)
		sn.orders[k] = v
	}
	for k, v := range s.refs {
		sn.refs[k] = v
	}
	for k, v := range s.events {
		sn.events[k] = v
	}
	return sn
}

func (s *store) restore(sn snapshot) {
	s.units, s.orders, s.allocs, s.refs, s.events = sn.units, sn.orders, sn.allocs, sn.refs, sn.events
}

// fakeTx is the Transactor. Calls are serialized, which also models the row
// locks the real allocator takes.
type fakeTx struct {
	s    *store
	lock sync.Mutex
}

type fakeTxKey struct{}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.s.mu.Lock()
	sn := t.s.snapshot()
	t.s.mu.Unlock()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		t.s.mu.Lock()
		t.s.restore(sn)
		t.s.rollbacks++
		t.s.mu.Unlock()
		return err
	}
	t.s.mu.Lock()
	t.s.commits++
	t.s.mu.Unlock()
	return nil
}

type fakeItems struct{ s *store }

func (r fakeItems) Create(ctx context.Context, item *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.ID == 0 {
		item.ID = r.s.id()
	}
	r.s.items[item.ID] = *item
	return nil
}

func (r fakeItems) CreatePromotion(ctx context.Context, p *model.Promotion, itemIDs []uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.s.id()
	}
	for _, id := range itemIDs {
		item := r.s.items[id]
		item.PromotionLinks = append(item.PromotionLinks, model.PromotionLink{ID: r.s.id(), PromotionID: p.ID, ItemID: id, Promotion: *p})
		r.s.items[id] = item
	}
	return nil
}

func (r fakeItems) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r fakeItems) FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Item
	for _, id := range ids {
		if item, ok := r.s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r fakeItems) Count(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.items)), nil
}

type fakeInventory struct{ s *store }

func (r fakeInventory) CreateBatch(ctx context.Context, units []model.InventoryUnit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range units {
		if units[i].ID == 0 {
			units[i].ID = r.s.id()
		}
		r.s.units[units[i].ID] = units[i]
	}
	return nil
}

func (r fakeInventory) FindByID(ctx context.Context, id uint64) (*model.InventoryUnit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.units[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r fakeInventory) CountInStock(ctx context.Context, variationID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.units {
		if u.VariationID == variationID && u.State == model.UnitStateInStock {
			n++
		}
	}
	return n, nil
}

func (r fakeInventory) CountInStockByVariations(ctx context.Context, variationIDs []uint64) (map[uint64]int64, error) {
	out := map[uint64]int64{}
	for _, id := range variationIDs {
		n, _ := r.CountInStock(ctx, id)
		if n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (r fakeInventory) ListByVariation(ctx context.Context, variationID uint64, state model.UnitState) ([]model.InventoryUnit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.InventoryUnit
	for _, u := range r.s.units {
		if u.VariationID == variationID && u.State == state {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeInventory) FindByIDsForUpdate(ctx context.Context, ids []uint64) ([]model.InventoryUnit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.InventoryUnit
	for _, id := range ids {
		if u, ok := r.s.units[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r fakeInventory) TransitionState(ctx context.Context, ids []uint64, from, to model.UnitState) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		u, ok := r.s.units[id]
		if !ok || u.State != from {
			continue
		}
		u.State = to
		r.s.units[id] = u
		n++
	}
	return n, nil
}

type fakeCustomers struct{ s *store }

func (r fakeCustomers) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r fakeCustomers) Upsert(ctx context.Context, c *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customers[c.ID] = *c
	return nil
}

type fakeOrders struct{ s *store }

func (r fakeOrders) Create(ctx context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreate != nil {
		return r.s.failCreate
	}
	for i := range o.Details {
		o.Details[i].ID = r.s.id()
		o.Details[i].OrderID = o.ID
	}
	for i := range o.Payments {
		o.Payments[i].ID = r.s.id()
		o.Payments[i].OrderID = o.ID
	}
	cp := *o
	cp.Details = append([]model.OrderDetail{}, o.Details...)
	cp.Payments = append([]model.OrderPayment{}, o.Payments...)
	r.s.orders[o.ID] = cp
	return nil
}

func (r fakeOrders) FindByID(ctx context.Context, id string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	o.Details = append([]model.OrderDetail{}, o.Details...)
	for i := range o.Details {
		o.Details[i].Allocations = nil
		for _, a := range r.s.allocs {
			if a.OrderDetailID == o.Details[i].ID {
				o.Details[i].Allocations = append(o.Details[i].Allocations, a)
			}
		}
	}
	o.Payments = append([]model.OrderPayment{}, o.Payments...)
	return &o, nil
}

func (r fakeOrders) ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Order
	for _, o := range r.s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r fakeOrders) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, fields map[string]interface{}) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return 0, nil
	}
	o.Status = to
	if v, ok := fields["verifier_id"].(string); ok {
		o.VerifierID = &v
	}
	if v, ok := fields["verified_at"].(time.Time); ok {
		o.VerifiedAt = &v
	}
	if v, ok := fields["delivered_at"].(time.Time); ok {
		o.DeliveredAt = &v
	}
	r.s.orders[id] = o
	return 1, nil
}

func (r fakeOrders) CreateAllocations(ctx context.Context, allocs []model.OrderAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range allocs {
		for _, existing := range r.s.allocs {
			if existing.InventoryUnitID == a.InventoryUnitID {
				return gorm.ErrDuplicatedKey
			}
		}
		a.ID = r.s.id()
		r.s.allocs = append(r.s.allocs, a)
	}
	return nil
}

func (r fakeOrders) AllocatedUnitIDs(ctx context.Context, orderID string) ([]uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uint64
	for _, a := range r.s.allocs {
		if a.OrderID == orderID {
			ids = append(ids, a.InventoryUnitID)
		}
	}
	return ids, nil
}

func (r fakeOrders) MarkPaymentPaid(ctx context.Context, orderID string, installment int, paidAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return 0, nil
	}
	var n int64
	for i := range o.Payments {
		p := &o.Payments[i]
		if p.Installment == installment && !p.IsPaid {
			p.IsPaid = true
			at := paidAt
			p.PaidAt = &at
			n++
		}
	}
	r.s.orders[orderID] = o
	return n, nil
}

func (r fakeOrders) CreatePaymentIfAbsent(ctx context.Context, p *model.OrderPayment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[p.OrderID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	for _, existing := range o.Payments {
		if existing.Installment == p.Installment {
			return false, nil
		}
	}
	p.ID = r.s.id()
	o.Payments = append(o.Payments, *p)
	r.s.orders[p.OrderID] = o
	return true, nil
}

type fakePayments struct{ s *store }

func (r fakePayments) CreateRef(ctx context.Context, ref *model.PaymentRef) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref.ID = r.s.id()
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	r.s.refs[ref.OrderID] = *ref
	return nil
}

func (r fakePayments) AttachIntent(ctx context.Context, orderID, intentID string, amountMinor int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.refs[orderID]
	if !ok || ref.Status != model.PaymentRefPending {
		return gorm.ErrRecordNotFound
	}
	id := intentID
	ref.IntentID = &id
	ref.AmountMinor = amountMinor
	ref.Status = model.PaymentRefAwaitingPayment
	r.s.refs[orderID] = ref
	return nil
}

func (r fakePayments) FindRefByIntent(ctx context.Context, intentID string) (*model.PaymentRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.refs {
		if ref.IntentID != nil && *ref.IntentID == intentID {
			return &ref, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePayments) FindRefByOrder(ctx context.Context, orderID string) (*model.PaymentRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.refs[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &ref, nil
}

func (r fakePayments) UpdateRefStatus(ctx context.Context, orderID string, status model.PaymentRefStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref := r.s.refs[orderID]
	ref.Status = status
	r.s.refs[orderID] = ref
	return nil
}

func (r fakePayments) ListStaleRefs(ctx context.Context, before time.Time, statuses []model.PaymentRefStatus, afterID uint64, limit int) ([]model.PaymentRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PaymentRef
	for _, ref := range r.s.refs {
		if !ref.UpdatedAt.Before(before) || ref.ID <= afterID {
			continue
		}
		for _, st := range statuses {
			if ref.Status == st {
				out = append(out, ref)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakePayments) RecordEvent(ctx context.Context, ev *model.WebhookEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[ev.EventID]; ok {
		return false, nil
	}
	r.s.events[ev.EventID] = *ev
	return true, nil
}

type fakeCarts struct {
	mu       sync.Mutex
	docs     map[string]model.CartDocument
	conflict int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{docs: map[string]model.CartDocument{}}
}

func (r *fakeCarts) Get(ctx context.Context, identity string) (*model.CartDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[identity]
	doc.Lines = append([]model.CartLine{}, doc.Lines...)
	return &doc, nil
}

func (r *fakeCarts) Save(ctx context.Context, identity string, doc *model.CartDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflict > 0 {
		r.conflict--
		return repository.ErrCartVersion
	}
	if r.docs[identity].Version != doc.Version {
		return repository.ErrCartVersion
	}
	doc.Version++
	r.docs[identity] = model.CartDocument{Lines: append([]model.CartLine{}, doc.Lines...), Version: doc.Version}
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	created   []gateway.IntentRequest
	canceled  []string
	intents   map[string]*gateway.Intent
	createErr error
	findErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*gateway.Intent{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	in := &gateway.Intent{
		ID:           "pi_" + req.OrderID,
		ClientSecret: "secret_" + req.OrderID,
		Status:       "requires_payment_method",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		OrderID:      req.OrderID,
	}
	g.intents[req.OrderID] = in
	return in, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, intentID)
	return nil
}

func (g *fakeGateway) FindIntentByOrder(ctx context.Context, orderID string) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	return g.intents[orderID], nil
}

type sentNotification struct {
	OrderID string
	Type    model.NotificationType
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) OrderChanged(ctx context.Context, o *model.Order, typ model.NotificationType) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{OrderID: o.ID, Type: typ})
}

func (n *recordingNotifier) types(orderID string) []model.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.NotificationType
	for _, s := range n.sent {
		if s.OrderID == orderID {
			out = append(out, s.Type)
		}
	}
	return out
}

// fixture wires every service over one in-memory store.
type fixture struct {
	s         *store
	carts     *fakeCarts
	gw        *fakeGateway
	notes     *recordingNotifier
	now       time.Time
	cart      *cartService
	orders    *orderService
	inventory *inventoryService
	payments  *paymentService
	nextOrder int
}

func newFixture() *fixture {
	s := newStore()
	f := &fixture{s: s, carts: newFakeCarts(), gw: newFakeGateway(), notes: &recordingNotifier{}, now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	tx := &fakeTx{s: s}
	clock := func() time.Time { return f.now }

	f.cart = &cartService{carts: f.carts, items: fakeItems{s}, inventory: fakeInventory{s}, now: clock}
	f.inventory = &inventoryService{tx: tx, inventory: fakeInventory{s}, orders: fakeOrders{s}, items: fakeItems{s}, now: clock}
	f.orders = &orderService{
		tx:        tx,
		orders:    fakeOrders{s},
		customers: fakeCustomers{s},
		items:     fakeItems{s},
		inventory: fakeInventory{s},
		allocator: f.inventory,
		notify:    f.notes,
		now:       clock,
		newID: func() string {
			f.nextOrder++
			return fmt.Sprintf("order-%d", f.nextOrder)
		},
	}
	f.payments = &paymentService{
		tx:           tx,
		orders:       f.orders,
		orderRepo:    fakeOrders{s},
		payments:     fakePayments{s},
		gateway:      f.gw,
		notify:       f.notes,
		currency:     "usd",
		exchangeRate: decimal.NewFromInt(1),
		now:          clock,
	}
	s.customers["cust-1"] = model.Customer{ID: "cust-1", Name: "Alice"}
	return f
}

// addItem creates an active item with one variation and n in-stock units.
func (f *fixture) addItem(price int64, units int) (itemID, variationID uint64) {
	f.s.mu.Lock()
	itemID = f.s.id()
	variationID = f.s.id()
	f.s.items[itemID] = model.Item{
		ID:         itemID,
		Name:       "item",
		Price:      decimal.NewFromInt(price),
		Active:     true,
		Variations: []model.Variation{{ID: variationID, ItemID: itemID, Name: "black"}},
	}
	f.s.mu.Unlock()
	f.stock(itemID, variationID, units)
	return itemID, variationID
}

func (f *fixture) stock(itemID, variationID uint64, n int) []uint64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id := f.s.id()
		f.s.units[id] = model.InventoryUnit{ID: id, ItemID: itemID, VariationID: variationID, State: model.UnitStateInStock}
		ids = append(ids, id)
	}
	return ids
}

func (f *fixture) unitsOf(variationID uint64) []uint64 {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []uint64
	for id, u := range f.s.units {
		if u.VariationID == variationID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fixture) unit(id uint64) model.InventoryUnit {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return f.s.units[id]
}

func (f *fixture) order(id string) model.Order {
	o, _ := fakeOrders{f.s}.FindByID(context.Background(), id)
	if o == nil {
		return model.Order{}
	}
	return *o
}
