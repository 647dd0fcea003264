package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

func TestRolesForUserIgnoresOtherCompanyRoles(t *testing.T) {
	s := New()
	a := s.AddCompany(auth.Company{Name: "A", Active: true})
	b := s.AddCompany(auth.Company{Name: "B", Active: true})
	u := s.AddUser(auth.User{Active: true, CompanyID: a.ID})
	own := s.AddRole(auth.Role{Name: "cajero", CompanyID: a.ID})
	foreign := s.AddRole(auth.Role{Name: "admin", CompanyID: b.ID})
	s.AssignRole(u.ID, own.ID)
	s.AssignRole(u.ID, foreign.ID)

	roles, err := s.RolesForUser(context.Background(), u.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, own.ID, roles[0].ID)
}

func TestLookupSubject(t *testing.T) {
	s := New()
	c := s.AddCompany(auth.Company{Name: "A", Active: true})
	u := s.AddUser(auth.User{Active: true, CompanyID: c.ID})

	gotU, gotC, err := s.LookupSubject(context.Background(), u.Subject)
	require.NoError(t, err)
	assert.Equal(t, u.ID, gotU.ID)
	assert.Equal(t, c.ID, gotC.ID)

	_, _, err = s.LookupSubject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrSubjectNotProvisioned)
}

func TestPermissionsForRolesDedupes(t *testing.T) {
	s := New()
	p := s.AddPermission("read", "ventas")
	assert.Equal(t, p, s.AddPermission("read", "ventas"))
	r1 := s.AddRole(auth.Role{CompanyID: 1})
	r2 := s.AddRole(auth.Role{CompanyID: 1})
	s.GrantPermission(r1.ID, p.ID)
	s.GrantPermission(r2.ID, p.ID)

	perms, err := s.PermissionsForRoles(context.Background(), []int64{r1.ID, r2.ID})
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestCreateSaleAtomicOnMissingProduct(t *testing.T) {
	s := New()
	ctx := context.Background()
	demo := SeedDemo(s, uuid.New())
	other := s.AddCompany(auth.Company{Name: "Other", Active: true})
	foreignProduct := s.AddProduct(other.ID, sales.ProductRef{Name: "x"})
	client, err := s.CreateClient(ctx, demo.Company.ID, sales.NewClient{Name: "Ana", Email: "ana@x.io"})
	require.NoError(t, err)

	_, err = s.CreateSale(ctx, demo.Company.ID, demo.Owner.ID, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: client.ID, CurrencyID: demo.Currency.ID,
		Items: []sales.NewLineItem{
			{ProductID: demo.Products[0].ID, Quantity: 1, UnitPrice: 10},
			{ProductID: foreignProduct.ID, Quantity: 1, UnitPrice: 10},
		},
	}, 20)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []int64{foreignProduct.ID}, apperr.MissingIDs(err))

	list, err := s.ListSales(ctx, demo.Company.ID, sales.Page{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, s.lines)
}

func TestListSalesPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	demo := SeedDemo(s, uuid.New())
	client, err := s.CreateClient(ctx, demo.Company.ID, sales.NewClient{Name: "Ana", Email: "ana@x.io"})
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 3; i++ {
		sale, err := s.CreateSale(ctx, demo.Company.ID, demo.Owner.ID, sales.NewSale{
			LegalName: "Ana", TaxID: "1", ClientID: client.ID, CurrencyID: demo.Currency.ID,
			Items: []sales.NewLineItem{{ProductID: demo.Products[0].ID, Quantity: 1, UnitPrice: 5}},
		}, 5)
		require.NoError(t, err)
		ids = append(ids, sale.ID)
	}

	page, err := s.ListSales(ctx, demo.Company.ID, sales.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)
	assert.Equal(t, "Ana", page[0].Client.Name)
	assert.Equal(t, "BOB", page[0].Currency.Name)
	assert.Equal(t, "Owner", page[0].User.LastName)
}

func TestDeleteReferencedClientFails(t *testing.T) {
	s := New()
	ctx := context.Background()
	demo := SeedDemo(s, uuid.New())
	client, err := s.CreateClient(ctx, demo.Company.ID, sales.NewClient{Name: "Ana", Email: "ana@x.io"})
	require.NoError(t, err)
	_, err = s.CreateSale(ctx, demo.Company.ID, demo.Owner.ID, sales.NewSale{
		LegalName: "Ana", TaxID: "1", ClientID: client.ID, CurrencyID: demo.Currency.ID,
		Items: []sales.NewLineItem{{ProductID: demo.Products[1].ID, Quantity: 2, UnitPrice: 5}},
	}, 10)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteClient(ctx, demo.Company.ID, client.ID), apperr.ErrValidation)
	assert.ErrorIs(t, s.DeleteCurrency(ctx, demo.Currency.ID), apperr.ErrValidation)
}
