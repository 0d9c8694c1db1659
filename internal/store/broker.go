package store

import (
	"context"
	"sync"

	"storefront/backend/internal/domain"
)

// Listener is called after a collection changes.
type Listener func()

// Broker fans out collection change notifications. Listeners run
// synchronously on the publishing goroutine, outside the broker lock.
type Broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]Listener
}

func NewBroker() *Broker {
	return &Broker{listeners: make(map[string]map[int]Listener)}
}

// Subscribe registers fn for collection and calls it once straight away so the
// subscriber starts from current data. The returned func unsubscribes.
func (b *Broker) Subscribe(collection string, fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.listeners[collection] == nil {
		b.listeners[collection] = make(map[int]Listener)
	}
	b.listeners[collection][id] = fn
	b.mu.Unlock()

	fn()

	return func() {
		b.mu.Lock()
		delete(b.listeners[collection], id)
		b.mu.Unlock()
	}
}

func (b *Broker) Publish(collection string) {
	b.mu.Lock()
	pending := make([]Listener, 0, len(b.listeners[collection]))
	for _, fn := range b.listeners[collection] {
		pending = append(pending, fn)
	}
	b.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Observed wraps a Repository and publishes on the broker after every
// successful mutation.
type Observed struct {
	Repository
	broker *Broker
}

func Observe(repo Repository, broker *Broker) *Observed {
	return &Observed{Repository: repo, broker: broker}
}

func (o *Observed) Broker() *Broker {
	return o.broker
}

func (o *Observed) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	created, err := o.Repository.CreateProduct(ctx, product)
	return publishOn(o.broker, CollectionProducts, created, err)
}

func (o *Observed) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := o.Repository.UpdateProduct(ctx, product)
	return publishOn(o.broker, CollectionProducts, updated, err)
}

func (o *Observed) DeleteProduct(ctx context.Context, id string) error {
	return o.notify(CollectionProducts, o.Repository.DeleteProduct(ctx, id))
}

func (o *Observed) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	updated, err := o.Repository.AdjustStock(ctx, productID, delta)
	return publishOn(o.broker, CollectionProducts, updated, err)
}

func (o *Observed) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	created, err := o.Repository.CreateCustomer(ctx, customer)
	return publishOn(o.broker, CollectionCustomers, created, err)
}

func (o *Observed) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	updated, err := o.Repository.UpdateCustomer(ctx, customer)
	return publishOn(o.broker, CollectionCustomers, updated, err)
}

func (o *Observed) DeleteCustomer(ctx context.Context, id string) error {
	return o.notify(CollectionCustomers, o.Repository.DeleteCustomer(ctx, id))
}

func (o *Observed) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := o.Repository.CreateSale(ctx, sale)
	return publishOn(o.broker, CollectionSales, created, err)
}

func (o *Observed) UpdateSaleStatus(ctx context.Context, id string, status string) (*domain.Sale, error) {
	updated, err := o.Repository.UpdateSaleStatus(ctx, id, status)
	return publishOn(o.broker, CollectionSales, updated, err)
}

func (o *Observed) DeleteSale(ctx context.Context, id string) error {
	return o.notify(CollectionSales, o.Repository.DeleteSale(ctx, id))
}

func (o *Observed) CreateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	created, err := o.Repository.CreateCashEvent(ctx, event)
	return publishOn(o.broker, CollectionCashEvents, created, err)
}

func (o *Observed) UpdateCashEvent(ctx context.Context, event domain.CashEvent) (*domain.CashEvent, error) {
	updated, err := o.Repository.UpdateCashEvent(ctx, event)
	return publishOn(o.broker, CollectionCashEvents, updated, err)
}

func (o *Observed) MarkCashEventCancelled(ctx context.Context, id string) (*domain.CashEvent, error) {
	updated, err := o.Repository.MarkCashEventCancelled(ctx, id)
	return publishOn(o.broker, CollectionCashEvents, updated, err)
}

func (o *Observed) DeleteCashEvent(ctx context.Context, id string) error {
	return o.notify(CollectionCashEvents, o.Repository.DeleteCashEvent(ctx, id))
}

func (o *Observed) notify(collection string, err error) error {
	if err == nil {
		o.broker.Publish(collection)
	}
	return err
}

func publishOn[T any](broker *Broker, collection string, value T, err error) (T, error) {
	if err == nil {
		broker.Publish(collection)
	}
	return value, err
}
