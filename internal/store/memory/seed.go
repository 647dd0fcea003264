package memory

import (
	"github.com/google/uuid"

	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

// Demo describes the rows created by SeedDemo.
type Demo struct {
	Company  auth.Company
	Owner    auth.User
	Currency sales.Currency
	Products []sales.ProductRef
}

// SeedDemo provisions one active company owned by subject, the permission
// catalog, a currency and two products. It backs local runs without a database.
func SeedDemo(s *Store, subject uuid.UUID) Demo {
	company := s.AddCompany(auth.Company{Name: "Demo", LegalName: "Demo S.R.L.", TaxID: "1000001", Active: true})
	owner := s.AddUser(auth.User{
		Subject:   subject,
		FirstName: "Demo",
		LastName:  "Owner",
		Email:     "owner@demo.local",
		IsOwner:   true,
		Active:    true,
		CompanyID: company.ID,
	})
	for _, g := range auth.Catalog() {
		s.AddPermission(g.Action, g.Resource)
	}

	s.mu.Lock()
	cur := sales.Currency{ID: s.nextID(), Name: "BOB"}
	s.currencies[cur.ID] = cur
	s.mu.Unlock()

	products := []sales.ProductRef{
		s.AddProduct(company.ID, sales.ProductRef{Name: "Cafe 500g", SKU: "CAF-500", Barcode: "7790001000011"}),
		s.AddProduct(company.ID, sales.ProductRef{Name: "Te verde", SKU: "TEV-020", Barcode: "7790001000028"}),
	}
	return Demo{Company: company, Owner: owner, Currency: cur, Products: products}
}
