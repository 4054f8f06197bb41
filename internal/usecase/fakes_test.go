package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/data/entity"
	"storefront/internal/data/repository"
	"storefront/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for Postgres. Transactions are
// serialized and rolled back by restoring a snapshot, and the guarded
// updates behave like their SQL counterparts.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users    map[uuid.UUID]*entity.User
	products map[uuid.UUID]*entity.Product
	orders   map[uuid.UUID]*entity.Order
	tokens   map[uuid.UUID]*entity.VerificationToken

	// failures keyed by operation name, consumed one per call
	failures map[string][]error
	// afterFindProducts runs after a FindByIDs read, outside any lock
	afterFindProducts func()
	// afterFindToken runs after a token lookup, outside any lock
	afterFindToken func()
	txCount        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]*entity.User{},
		products: map[uuid.UUID]*entity.Product{},
		orders:   map[uuid.UUID]*entity.Order{},
		tokens:   map[uuid.UUID]*entity.VerificationToken{},
		failures: map[string][]error{},
	}
}

func (s *fakeStore) failNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// fail must be called with mu held.
func (s *fakeStore) fail(op string) error {
	errs := s.failures[op]
	if len(errs) == 0 {
		return nil
	}
	s.failures[op] = errs[1:]
	return errs[0]
}

func (s *fakeStore) repository() *repository.Repository {
	return &repository.Repository{
		User:    &fakeUserRepo{s},
		Product: &fakeProductRepo{s},
		Order:   &fakeOrderRepo{s},
		Token:   &fakeTokenRepo{s},
		Tx:      &fakeTx{s},
	}
}

func (s *fakeStore) addUser(u *entity.User) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
	return u
}

func (s *fakeStore) addProduct(name string, price string, stock int) *entity.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p := &entity.Product{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "general",
		Stock:    stock,
	}
	c := *p
	s.products[p.ID] = &c
	return p
}

func (s *fakeStore) user(id uuid.UUID) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

func (s *fakeStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *fakeStore) setPrice(id uuid.UUID, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id].Price = decimal.RequireFromString(price)
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *fakeStore) tokensFor(userID uuid.UUID, tokenType entity.TokenType) []*entity.VerificationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.VerificationToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.Type == tokenType {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

func (s *fakeStore) snapshot() func() {
	users := make(map[uuid.UUID]*entity.User, len(s.users))
	for k, v := range s.users {
		c := *v
		users[k] = &c
	}
	products := make(map[uuid.UUID]*entity.Product, len(s.products))
	for k, v := range s.products {
		c := *v
		products[k] = &c
	}
	orders := make(map[uuid.UUID]*entity.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	tokens := make(map[uuid.UUID]*entity.VerificationToken, len(s.tokens))
	for k, v := range s.tokens {
		c := *v
		tokens[k] = &c
	}
	return func() {
		s.users, s.products, s.orders, s.tokens = users, products, orders, tokens
	}
}

type fakeTxKey struct{}

type fakeTx struct{ s *fakeStore }

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}

	f.s.txMu.Lock()
	defer f.s.txMu.Unlock()

	f.s.mu.Lock()
	f.s.txCount++
	restore := f.s.snapshot()
	f.s.mu.Unlock()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.s.mu.Lock()
		restore()
		f.s.mu.Unlock()
		return err
	}
	return nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("user.Create"); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("user.FindByID"); err != nil {
		return nil, err
	}
	if u, ok := r.s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("user.FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("user.Update"); err != nil {
		return err
	}
	if _, ok := r.s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

type fakeProductRepo struct{ s *fakeStore }

func (r *fakeProductRepo) Create(_ context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("product.Create"); err != nil {
		return err
	}
	c := *product
	r.s.products[product.ID] = &c
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("product.FindByID"); err != nil {
		return nil, err
	}
	if p, ok := r.s.products[id]; ok && p.DeletedAt == nil {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Product, error) {
	r.s.mu.Lock()
	if err := r.s.fail("product.FindByIDs"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	out := make(map[uuid.UUID]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.DeletedAt == nil {
			c := *p
			out[id] = &c
		}
	}
	hook := r.s.afterFindProducts
	r.s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *fakeProductRepo) matching(filter repository.ProductFilter) []*entity.Product {
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.DeletedAt != nil {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Keyword)) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *fakeProductRepo) FindAll(_ context.Context, filter repository.ProductFilter, offset, limit int) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("product.FindAll"); err != nil {
		return nil, err
	}
	all := r.matching(filter)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *fakeProductRepo) CountAll(_ context.Context, filter repository.ProductFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("product.CountAll"); err != nil {
		return 0, err
	}
	return int64(len(r.matching(filter))), nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.products[product.ID]; !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	c := *product
	r.s.products[product.ID] = &c
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (r *fakeProductRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("product.DecrementStock"); err != nil {
		return err
	}
	p, ok := r.s.products[id]
	if !ok || p.DeletedAt != nil || p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

type fakeOrderRepo struct{ s *fakeStore }

func (r *fakeOrderRepo) CreateWithItems(_ context.Context, order *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("order.CreateWithItems"); err != nil {
		return err
	}
	c := *order
	c.Items = make([]*entity.OrderItem, len(order.Items))
	for i, item := range order.Items {
		ic := *item
		ic.Product = nil
		c.Items[i] = &ic
	}
	r.s.orders[order.ID] = &c
	return nil
}

// withItems must be called with mu held.
func (r *fakeOrderRepo) withItems(o *entity.Order) *entity.Order {
	c := *o
	c.Items = make([]*entity.OrderItem, len(o.Items))
	for i, item := range o.Items {
		ic := *item
		if p, ok := r.s.products[item.ProductID]; ok {
			pc := *p
			ic.Product = &pc
		}
		c.Items[i] = &ic
	}
	return &c
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("order.FindByID"); err != nil {
		return nil, err
	}
	if o, ok := r.s.orders[id]; ok {
		return r.withItems(o), nil
	}
	return nil, nil
}

func (r *fakeOrderRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("order.FindByUserID"); err != nil {
		return nil, err
	}
	out := []*entity.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, r.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeTokenRepo struct{ s *fakeStore }

func (r *fakeTokenRepo) Create(_ context.Context, token *entity.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("token.Create"); err != nil {
		return err
	}
	c := *token
	r.s.tokens[token.ID] = &c
	return nil
}

func (r *fakeTokenRepo) FindByToken(_ context.Context, value string) (*entity.VerificationToken, error) {
	r.s.mu.Lock()
	if err := r.s.fail("token.FindByToken"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	var found *entity.VerificationToken
	for _, t := range r.s.tokens {
		if t.Token == value {
			c := *t
			found = &c
			break
		}
	}
	hook := r.s.afterFindToken
	r.s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return found, nil
}

func (r *fakeTokenRepo) MarkUsed(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok {
		return repository.ErrTokenNotFound
	}
	if t.IsUsed {
		return repository.ErrTokenAlreadyUsed
	}
	t.IsUsed = true
	t.UsedAt = &usedAt
	return nil
}

func (r *fakeTokenRepo) DeleteUnused(_ context.Context, userID uuid.UUID, tokenType entity.TokenType) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID && t.Type == tokenType && !t.IsUsed {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

type sentNotification struct {
	kind  notify.Kind
	email string
	token string
	name  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, kind notify.Kind, email, token, displayName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: kind, email: email, token: token, name: displayName})
	return n.err
}

func (n *fakeNotifier) Close() error { return nil }

func (n *fakeNotifier) last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNotification{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
