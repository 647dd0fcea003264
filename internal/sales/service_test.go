package sales_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
	"ventas.io/internal/events"
	"ventas.io/internal/sales"
	"ventas.io/internal/store/memory"
)

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

type fixture struct {
	store    *memory.Store
	svc      *sales.Service
	pub      *recordingPublisher
	demo     memory.Demo
	owner    auth.SecurityContext
	other    auth.SecurityContext
	otherCo  auth.Company
	foreignP sales.ProductRef
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	demo := memory.SeedDemo(store, uuid.New())
	otherCo := store.AddCompany(auth.Company{Name: "Rival", Active: true})
	otherOwner := store.AddUser(auth.User{IsOwner: true, Active: true, CompanyID: otherCo.ID})
	foreign := store.AddProduct(otherCo.ID, sales.ProductRef{Name: "Foreign"})

	pub := &recordingPublisher{}
	svc, err := sales.NewService(store,
		sales.WithPublisher(pub),
		sales.WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() }),
	)
	require.NoError(t, err)

	return &fixture{
		store:    store,
		svc:      svc,
		pub:      pub,
		demo:     demo,
		owner:    auth.NewSecurityContext(demo.Owner, demo.Company, nil, nil),
		other:    auth.NewSecurityContext(otherOwner, otherCo, nil, nil),
		otherCo:  otherCo,
		foreignP: foreign,
	}
}

func (f *fixture) member(perms ...auth.Grant) auth.SecurityContext {
	u := f.store.AddUser(auth.User{Active: true, CompanyID: f.demo.Company.ID})
	var ps []auth.Permission
	for _, g := range perms {
		ps = append(ps, auth.Permission{Action: g.Action, Resource: g.Resource})
	}
	return auth.NewSecurityContext(u, f.demo.Company, nil, ps)
}

func (f *fixture) client(t *testing.T, sc auth.SecurityContext) sales.Client {
	t.Helper()
	c, err := f.svc.CreateClient(context.Background(), sc, sales.NewClient{
		Name: "Ana", Kind: "empresa", Phone: "70000000", Email: "ana@example.com", Notes: "vip",
	})
	require.NoError(t, err)
	return c
}

func TestComputeTotalExamples(t *testing.T) {
	assert.EqualValues(t, 0, sales.ComputeTotal([]sales.NewLineItem{{UnitPrice: 100, LineDiscount: 10, Quantity: 2}}, 500))
	assert.EqualValues(t, 130, sales.ComputeTotal([]sales.NewLineItem{{UnitPrice: 50, Quantity: 3}}, 20))
	assert.EqualValues(t, 180, sales.ComputeTotal([]sales.NewLineItem{{UnitPrice: 100, LineDiscount: 10, Quantity: 2}}, 0))
}

func TestTenantIsolationOnLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, f.owner)
	f.client(t, f.owner)
	f.client(t, f.other)

	mine, err := f.svc.ListClients(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, c := range mine {
		assert.Equal(t, f.demo.Company.ID, c.CompanyID)
	}
	theirs, err := f.svc.ListClients(ctx, f.other)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, f.otherCo.ID, theirs[0].CompanyID)
}

func TestCrossTenantLooksLikeMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)

	_, crossErr := f.svc.GetClient(ctx, f.other, c.ID)
	_, missingErr := f.svc.GetClient(ctx, f.other, 999999)
	require.ErrorIs(t, crossErr, apperr.ErrNotFound)
	require.ErrorIs(t, missingErr, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindOf(crossErr), apperr.KindOf(missingErr))

	_, err := f.svc.UpdateClient(ctx, f.other, c.ID, sales.ClientPatch{Name: sales.Some("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteClient(ctx, f.other, c.ID), apperr.ErrNotFound)

	still, err := f.svc.GetClient(ctx, f.owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", still.Name)
}

func TestForbiddenBeforeStoreAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := f.member(auth.Grant{Action: auth.ActionRead, Resource: auth.ResourceClients})

	_, err := f.svc.ListClients(ctx, reader)
	require.NoError(t, err)

	_, err = f.svc.CreateClient(ctx, reader, sales.NewClient{Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	// Validation would fail too; the guard runs first.
	_, err = f.svc.CreateSale(ctx, reader, sales.NewSale{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.ListCurrencies(ctx, reader)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	// Forbidden wins over NotFound for ids that do not exist.
	assert.ErrorIs(t, f.svc.DeleteClient(ctx, reader, 424242), apperr.ErrForbidden)

	clients, err := f.svc.ListClients(ctx, reader)
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestCreateSaleComputesClampedTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)

	sale, err := f.svc.CreateSale(ctx, f.owner, sales.NewSale{
		Discount: 500, LegalName: "Ana SRL", TaxID: "123", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: f.demo.Products[0].ID, UnitPrice: 100, LineDiscount: 10, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, sale.Total)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "CAF-500", sale.Items[0].Product.SKU)

	sale2, err := f.svc.CreateSale(ctx, f.owner, sales.NewSale{
		Discount: 20, LegalName: "Ana SRL", TaxID: "123", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: f.demo.Products[1].ID, UnitPrice: 50, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 130, sale2.Total)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, events.SaleCreated, f.pub.events[0].Type)
	assert.Equal(t, f.demo.Company.ID, f.pub.events[0].CompanyID)
}

func TestCreateSaleRejectsAmountsOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)
	productID := f.demo.Products[0].ID

	sale := func(discount int64, items ...sales.NewLineItem) sales.NewSale {
		return sales.NewSale{
			Discount: discount, LegalName: "Ana", TaxID: "1", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
			Items: items,
		}
	}
	maxLine := sales.NewLineItem{ProductID: productID, UnitPrice: sales.MaxAmount, Quantity: sales.MaxQuantity}
	wrapping := make([]sales.NewLineItem, 10)
	for i := range wrapping {
		wrapping[i] = maxLine
	}

	cases := map[string]sales.NewSale{
		"price wraps int64":  sale(0, sales.NewLineItem{ProductID: productID, UnitPrice: 1 << 62, Quantity: 2}),
		"price above bound":  sale(0, sales.NewLineItem{ProductID: productID, UnitPrice: 1 << 62, Quantity: 5}),
		"quantity too large": sale(0, sales.NewLineItem{ProductID: productID, UnitPrice: 1, Quantity: sales.MaxQuantity + 1}),
		"line discount":      sale(0, sales.NewLineItem{ProductID: productID, UnitPrice: 1, Quantity: 1, LineDiscount: sales.MaxAmount + 1}),
		"sale discount":      sale(sales.MaxAmount+1, sales.NewLineItem{ProductID: productID, UnitPrice: 1, Quantity: 1}),
		"subtotal overflow":  sale(0, wrapping...),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateSale(ctx, f.owner, in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	list, err := f.svc.ListSales(ctx, f.owner, sales.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.pub.events)

	// The largest single line stays exact.
	created, err := f.svc.CreateSale(ctx, f.owner, sale(0, maxLine))
	require.NoError(t, err)
	assert.Equal(t, sales.MaxAmount*sales.MaxQuantity, created.Total)

	_, err = f.svc.UpdateSale(ctx, f.owner, created.ID, sales.SalePatch{Discount: sales.Some(sales.MaxAmount + 1)})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateSaleForeignProductPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)

	_, err := f.svc.CreateSale(ctx, f.owner, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{
			{ProductID: f.demo.Products[0].ID, UnitPrice: 10, Quantity: 1},
			{ProductID: f.foreignP.ID, UnitPrice: 10, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []int64{f.foreignP.ID}, apperr.MissingIDs(err))

	list, err := f.svc.ListSales(ctx, f.owner, sales.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.pub.events)
}

func TestCreateSaleReferenceChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.client(t, f.owner)
	theirs := f.client(t, f.other)

	base := sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: mine.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: f.demo.Products[0].ID, UnitPrice: 10, Quantity: 1}},
	}

	crossClient := base
	crossClient.ClientID = theirs.ID
	_, err := f.svc.CreateSale(ctx, f.owner, crossClient)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	badCurrency := base
	badCurrency.CurrencyID = 987654
	_, err = f.svc.CreateSale(ctx, f.owner, badCurrency)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	invalid := []func(*sales.NewSale){
		func(s *sales.NewSale) { s.Items = nil },
		func(s *sales.NewSale) { s.Discount = -1 },
		func(s *sales.NewSale) { s.Items = []sales.NewLineItem{{ProductID: 1, Quantity: 0}} },
		func(s *sales.NewSale) { s.Items = []sales.NewLineItem{{ProductID: 1, Quantity: 1, UnitPrice: -5}} },
		func(s *sales.NewSale) { s.Items = []sales.NewLineItem{{ProductID: 1, Quantity: 1, LineDiscount: -1}} },
		func(s *sales.NewSale) { s.Items = []sales.NewLineItem{{ProductID: 0, Quantity: 1}} },
		func(s *sales.NewSale) { s.TaxID = "" },
	}
	for i, mutate := range invalid {
		in := base
		mutate(&in)
		_, err := f.svc.CreateSale(ctx, f.owner, in)
		assert.ErrorIs(t, err, apperr.ErrValidation, "case %d", i)
	}
}

func TestPartialClientUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)

	var patch sales.ClientPatch
	require.NoError(t, json.Unmarshal([]byte(`{"email":"nuevo@example.com"}`), &patch))
	updated, err := f.svc.UpdateClient(ctx, f.owner, c.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", updated.Email)
	assert.Equal(t, c.Name, updated.Name)
	assert.Equal(t, c.Kind, updated.Kind)
	assert.Equal(t, c.Phone, updated.Phone)
	assert.Equal(t, c.Notes, updated.Notes)

	var clear sales.ClientPatch
	require.NoError(t, json.Unmarshal([]byte(`{"notas":"","telefono":null}`), &clear))
	cleared, err := f.svc.UpdateClient(ctx, f.owner, c.ID, clear)
	require.NoError(t, err)
	assert.Equal(t, "", cleared.Notes)
	assert.Equal(t, "", cleared.Phone)
	assert.Equal(t, "nuevo@example.com", cleared.Email)

	var bad sales.ClientPatch
	require.NoError(t, json.Unmarshal([]byte(`{"email":"not-an-email"}`), &bad))
	_, err = f.svc.UpdateClient(ctx, f.owner, c.ID, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateSaleRecomputesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, f.owner)
	sale, err := f.svc.CreateSale(ctx, f.owner, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: f.demo.Products[0].ID, UnitPrice: 50, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 150, sale.Total)

	updated, err := f.svc.UpdateSale(ctx, f.owner, sale.ID, sales.SalePatch{Discount: sales.Some[int64](20)})
	require.NoError(t, err)
	assert.EqualValues(t, 130, updated.Total)
	assert.Equal(t, "Ana", updated.LegalName)

	clamped, err := f.svc.UpdateSale(ctx, f.owner, sale.ID, sales.SalePatch{Discount: sales.Some[int64](1000)})
	require.NoError(t, err)
	assert.EqualValues(t, 0, clamped.Total)

	_, err = f.svc.UpdateSale(ctx, f.other, sale.ID, sales.SalePatch{TaxID: sales.Some("9")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.svc.DeleteSale(ctx, f.owner, sale.ID))
	_, err = f.svc.GetSale(ctx, f.owner, sale.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, events.SaleDeleted, f.pub.events[len(f.pub.events)-1].Type)
}

func TestCurrencyIsGlobal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cur, err := f.svc.CreateCurrency(ctx, f.owner, sales.NewCurrency{Name: "USD"})
	require.NoError(t, err)

	got, err := f.svc.GetCurrency(ctx, f.other, cur.ID)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Name)

	renamed, err := f.svc.UpdateCurrency(ctx, f.other, cur.ID, sales.CurrencyPatch{Name: sales.Some("US$")})
	require.NoError(t, err)
	assert.Equal(t, "US$", renamed.Name)

	_, err = f.svc.CreateCurrency(ctx, f.owner, sales.NewCurrency{Name: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, f.svc.DeleteCurrency(ctx, f.owner, cur.ID))
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("nats down")
	c := f.client(t, f.owner)
	_, err := f.svc.CreateSale(context.Background(), f.owner, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: c.ID, CurrencyID: f.demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: f.demo.Products[0].ID, UnitPrice: 1, Quantity: 1}},
	})
	assert.NoError(t, err)
}

func TestNormalizePage(t *testing.T) {
	assert.Equal(t, sales.Page{Limit: 50}, sales.NormalizePage(sales.Page{}))
	assert.Equal(t, sales.Page{Limit: 200, Offset: 0}, sales.NormalizePage(sales.Page{Limit: 999, Offset: -3}))
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := sales.NewService(nil)
	assert.Error(t, err)
}

func TestWatchSalesScopedToCompany(t *testing.T) {
	store := memory.New()
	demo := memory.SeedDemo(store, uuid.New())
	otherCo := store.AddCompany(auth.Company{Name: "Rival", Active: true})
	otherOwner := store.AddUser(auth.User{IsOwner: true, Active: true, CompanyID: otherCo.ID})

	bus := events.NewBus()
	svc, err := sales.NewService(store, sales.WithPublisher(bus), sales.WithSubscriber(bus))
	require.NoError(t, err)
	owner := auth.NewSecurityContext(demo.Owner, demo.Company, nil, nil)
	other := auth.NewSecurityContext(otherOwner, otherCo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := svc.WatchSales(ctx, owner)
	require.NoError(t, err)
	rivalFeed, err := svc.WatchSales(ctx, other)
	require.NoError(t, err)

	c, err := svc.CreateClient(ctx, owner, sales.NewClient{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	sale, err := svc.CreateSale(ctx, owner, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: c.ID, CurrencyID: demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: demo.Products[0].ID, UnitPrice: 5, Quantity: 2}},
	})
	require.NoError(t, err)

	select {
	case ev := <-feed:
		assert.Equal(t, events.SaleCreated, ev.Type)
		assert.Equal(t, sale.ID, ev.EntityID)
		assert.Equal(t, demo.Company.ID, ev.CompanyID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-rivalFeed:
		t.Fatalf("event leaked to another company: %+v", ev)
	default:
	}
}

func TestWatchSalesRequiresPermissionAndFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.WatchSales(ctx, f.member())
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.WatchSales(ctx, f.owner)
	assert.ErrorIs(t, err, sales.ErrNoFeed)
}
