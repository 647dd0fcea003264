package sales

import (
	"context"
	"errors"
	"time"

	"ventas.io/internal/audit"
	"ventas.io/internal/auth"
	"ventas.io/internal/events"
	"ventas.io/internal/obs"
)

// Service runs the tenant-scoped operations. It holds no per-request state.
type Service struct {
	store  Store
	events events.Publisher
	feed   Subscriber
	now    func() time.Time
}

// Subscriber delivers the events of one company until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, companyID int64) <-chan events.Event
}

// ErrNoFeed is returned by WatchSales when no Subscriber is configured.
var ErrNoFeed = errors.New("sales: event feed disabled")

// ServiceOption configures optional collaborators of Service.
type ServiceOption func(*Service) error

// WithPublisher sets the sink for sale lifecycle events.
func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) error {
		if p == nil {
			return errors.New("sales: nil publisher")
		}
		s.events = p
		return nil
	}
}

// WithSubscriber enables WatchSales.
func WithSubscriber(sub Subscriber) ServiceOption {
	return func(s *Service) error {
		if sub == nil {
			return errors.New("sales: nil subscriber")
		}
		s.feed = sub
		return nil
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn == nil {
			return errors.New("sales: nil clock")
		}
		s.now = fn
		return nil
	}
}

// NewService wires a Service on top of store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("sales: store is required")
	}
	s := &Service{
		store:  store,
		events: events.Nop{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) authorize(sc auth.SecurityContext, action, resource string) error {
	err := sc.Require(action, resource)
	obs.ObserveDecision(action, resource, err == nil)
	return err
}

func (s *Service) audit(ctx context.Context, sc auth.SecurityContext, event string, id int64) {
	if err := audit.LogEvent(ctx, sc, event, map[string]any{"id": id}); err != nil {
		obs.Logger().Warn().Err(err).Str("event", event).Msg("audit log failed")
	}
}

func (s *Service) publish(ctx context.Context, sc auth.SecurityContext, typ string, id int64, data any) {
	ev := events.Event{
		Type:       typ,
		CompanyID:  sc.CompanyID(),
		EntityID:   id,
		ActorID:    sc.User.ID,
		OccurredAt: s.now(),
		Data:       data,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		obs.Logger().Warn().Err(err).Str("event", typ).Int64("id", id).Msg("event publish failed")
	}
}

// --- clients ---

func (s *Service) ListClients(ctx context.Context, sc auth.SecurityContext) ([]Client, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceClients); err != nil {
		return nil, err
	}
	return s.store.ListClients(ctx, sc.CompanyID())
}

func (s *Service) GetClient(ctx context.Context, sc auth.SecurityContext, id int64) (Client, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceClients); err != nil {
		return Client{}, err
	}
	return s.store.GetClient(ctx, sc.CompanyID(), id)
}

func (s *Service) CreateClient(ctx context.Context, sc auth.SecurityContext, in NewClient) (Client, error) {
	if err := s.authorize(sc, auth.ActionCreate, auth.ResourceClients); err != nil {
		return Client{}, err
	}
	if err := validateNewClient(in); err != nil {
		return Client{}, err
	}
	c, err := s.store.CreateClient(ctx, sc.CompanyID(), in)
	if err != nil {
		return Client{}, err
	}
	s.audit(ctx, sc, "client.create", c.ID)
	return c, nil
}

func (s *Service) UpdateClient(ctx context.Context, sc auth.SecurityContext, id int64, patch ClientPatch) (Client, error) {
	if err := s.authorize(sc, auth.ActionUpdate, auth.ResourceClients); err != nil {
		return Client{}, err
	}
	if err := validateClientPatch(patch); err != nil {
		return Client{}, err
	}
	if patch.Empty() {
		return s.store.GetClient(ctx, sc.CompanyID(), id)
	}
	c, err := s.store.UpdateClient(ctx, sc.CompanyID(), id, patch)
	if err != nil {
		return Client{}, err
	}
	s.audit(ctx, sc, "client.update", c.ID)
	return c, nil
}

func (s *Service) DeleteClient(ctx context.Context, sc auth.SecurityContext, id int64) error {
	if err := s.authorize(sc, auth.ActionDelete, auth.ResourceClients); err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, sc.CompanyID(), id); err != nil {
		return err
	}
	s.audit(ctx, sc, "client.delete", id)
	return nil
}

// --- currencies ---

func (s *Service) ListCurrencies(ctx context.Context, sc auth.SecurityContext) ([]Currency, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceCurrencies); err != nil {
		return nil, err
	}
	return s.store.ListCurrencies(ctx)
}

func (s *Service) GetCurrency(ctx context.Context, sc auth.SecurityContext, id int64) (Currency, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceCurrencies); err != nil {
		return Currency{}, err
	}
	return s.store.GetCurrency(ctx, id)
}

func (s *Service) CreateCurrency(ctx context.Context, sc auth.SecurityContext, in NewCurrency) (Currency, error) {
	if err := s.authorize(sc, auth.ActionCreate, auth.ResourceCurrencies); err != nil {
		return Currency{}, err
	}
	if err := validateNewCurrency(in); err != nil {
		return Currency{}, err
	}
	c, err := s.store.CreateCurrency(ctx, in)
	if err != nil {
		return Currency{}, err
	}
	s.audit(ctx, sc, "currency.create", c.ID)
	return c, nil
}

func (s *Service) UpdateCurrency(ctx context.Context, sc auth.SecurityContext, id int64, patch CurrencyPatch) (Currency, error) {
	if err := s.authorize(sc, auth.ActionUpdate, auth.ResourceCurrencies); err != nil {
		return Currency{}, err
	}
	if err := validateCurrencyPatch(patch); err != nil {
		return Currency{}, err
	}
	if !patch.Name.Set {
		return s.store.GetCurrency(ctx, id)
	}
	c, err := s.store.UpdateCurrency(ctx, id, patch)
	if err != nil {
		return Currency{}, err
	}
	s.audit(ctx, sc, "currency.update", c.ID)
	return c, nil
}

func (s *Service) DeleteCurrency(ctx context.Context, sc auth.SecurityContext, id int64) error {
	if err := s.authorize(sc, auth.ActionDelete, auth.ResourceCurrencies); err != nil {
		return err
	}
	if err := s.store.DeleteCurrency(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, sc, "currency.delete", id)
	return nil
}

// --- sales ---

// NormalizePage applies the list defaults and bounds.
func NormalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (s *Service) ListSales(ctx context.Context, sc auth.SecurityContext, page Page) ([]SaleSummary, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceSales); err != nil {
		return nil, err
	}
	return s.store.ListSales(ctx, sc.CompanyID(), NormalizePage(page))
}

func (s *Service) GetSale(ctx context.Context, sc auth.SecurityContext, id int64) (Sale, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceSales); err != nil {
		return Sale{}, err
	}
	return s.store.GetSale(ctx, sc.CompanyID(), id)
}

// CreateSale validates the payload, computes the clamped total and hands the
// referential checks plus inserts to the store as one transaction.
func (s *Service) CreateSale(ctx context.Context, sc auth.SecurityContext, in NewSale) (Sale, error) {
	if err := s.authorize(sc, auth.ActionCreate, auth.ResourceSales); err != nil {
		return Sale{}, err
	}
	if err := validateNewSale(in); err != nil {
		return Sale{}, err
	}
	total := ComputeTotal(in.Items, in.Discount)
	sale, err := s.store.CreateSale(ctx, sc.CompanyID(), sc.User.ID, in, total)
	if err != nil {
		return Sale{}, err
	}
	s.audit(ctx, sc, "sale.create", sale.ID)
	s.publish(ctx, sc, events.SaleCreated, sale.ID, sale.SaleSummary)
	return sale, nil
}

func (s *Service) UpdateSale(ctx context.Context, sc auth.SecurityContext, id int64, patch SalePatch) (Sale, error) {
	if err := s.authorize(sc, auth.ActionUpdate, auth.ResourceSales); err != nil {
		return Sale{}, err
	}
	if err := validateSalePatch(patch); err != nil {
		return Sale{}, err
	}
	if patch.Empty() {
		return s.store.GetSale(ctx, sc.CompanyID(), id)
	}
	sale, err := s.store.UpdateSale(ctx, sc.CompanyID(), id, patch)
	if err != nil {
		return Sale{}, err
	}
	s.audit(ctx, sc, "sale.update", sale.ID)
	s.publish(ctx, sc, events.SaleUpdated, sale.ID, sale.SaleSummary)
	return sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, sc auth.SecurityContext, id int64) error {
	if err := s.authorize(sc, auth.ActionDelete, auth.ResourceSales); err != nil {
		return err
	}
	if err := s.store.DeleteSale(ctx, sc.CompanyID(), id); err != nil {
		return err
	}
	s.audit(ctx, sc, "sale.delete", id)
	s.publish(ctx, sc, events.SaleDeleted, id, nil)
	return nil
}

// WatchSales streams sale events of the caller's company until ctx ends.
func (s *Service) WatchSales(ctx context.Context, sc auth.SecurityContext) (<-chan events.Event, error) {
	if err := s.authorize(sc, auth.ActionRead, auth.ResourceSales); err != nil {
		return nil, err
	}
	if s.feed == nil {
		return nil, ErrNoFeed
	}
	return s.feed.Subscribe(ctx, sc.CompanyID()), nil
}
