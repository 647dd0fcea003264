package memory

import (
	"context"
	"sort"

	"ventas.io/internal/apperr"
	"ventas.io/internal/sales"
)

// --- clients ---

func (s *Store) ListClients(_ context.Context, companyID int64) ([]sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sales.Client, 0)
	for _, c := range s.clients {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetClient(_ context.Context, companyID, id int64) (sales.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientLocked(companyID, id)
}

func (s *Store) clientLocked(companyID, id int64) (sales.Client, error) {
	c, ok := s.clients[id]
	if !ok || c.CompanyID != companyID {
		return sales.Client{}, apperr.NotFound("client", id)
	}
	return c, nil
}

func (s *Store) CreateClient(_ context.Context, companyID int64, in sales.NewClient) (sales.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := sales.Client{
		ID:        s.nextID(),
		Name:      in.Name,
		Kind:      in.Kind,
		Phone:     in.Phone,
		Email:     in.Email,
		Notes:     in.Notes,
		CompanyID: companyID,
	}
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) UpdateClient(_ context.Context, companyID, id int64, patch sales.ClientPatch) (sales.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.clientLocked(companyID, id)
	if err != nil {
		return sales.Client{}, err
	}
	c = patch.Apply(c)
	s.clients[id] = c
	return c, nil
}

func (s *Store) DeleteClient(_ context.Context, companyID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.clientLocked(companyID, id); err != nil {
		return err
	}
	for _, row := range s.sales {
		if row.clientID == id {
			return apperr.Invalid("client %d is referenced by sales", id)
		}
	}
	delete(s.clients, id)
	return nil
}

// --- currencies ---

func (s *Store) ListCurrencies(context.Context) ([]sales.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sales.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCurrency(_ context.Context, id int64) (sales.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.currencies[id]
	if !ok {
		return sales.Currency{}, apperr.NotFound("currency", id)
	}
	return c, nil
}

func (s *Store) CreateCurrency(_ context.Context, in sales.NewCurrency) (sales.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := sales.Currency{ID: s.nextID(), Name: in.Name}
	s.currencies[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCurrency(_ context.Context, id int64, patch sales.CurrencyPatch) (sales.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currencies[id]
	if !ok {
		return sales.Currency{}, apperr.NotFound("currency", id)
	}
	c.Name = patch.Name.Or(c.Name)
	s.currencies[id] = c
	return c, nil
}

func (s *Store) DeleteCurrency(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.currencies[id]; !ok {
		return apperr.NotFound("currency", id)
	}
	for _, row := range s.sales {
		if row.currencyID == id {
			return apperr.Invalid("currency %d is referenced by sales", id)
		}
	}
	delete(s.currencies, id)
	return nil
}

// --- sales ---

func (s *Store) summaryLocked(row saleRow) sales.SaleSummary {
	sum := sales.SaleSummary{
		ID:        row.id,
		CreatedAt: row.createdAt,
		Discount:  row.discount,
		Total:     row.total,
		LegalName: row.legalName,
		TaxID:     row.taxID,
		CompanyID: row.companyID,
		Client:    sales.ClientRef{ID: row.clientID},
		Currency:  sales.CurrencyRef{ID: row.currencyID},
		User:      sales.UserRef{ID: row.userID},
	}
	if c, ok := s.clients[row.clientID]; ok {
		sum.Client.Name = c.Name
	}
	if c, ok := s.currencies[row.currencyID]; ok {
		sum.Currency.Name = c.Name
	}
	if u, ok := s.users[row.userID]; ok {
		sum.User.FirstName = u.FirstName
		sum.User.LastName = u.LastName
	}
	return sum
}

func (s *Store) saleLocked(companyID, id int64) (sales.Sale, error) {
	row, ok := s.sales[id]
	if !ok || row.companyID != companyID {
		return sales.Sale{}, apperr.NotFound("sale", id)
	}
	sale := sales.Sale{SaleSummary: s.summaryLocked(row), Items: make([]sales.LineItem, 0, len(s.lines[id]))}
	for _, l := range s.lines[id] {
		item := sales.LineItem{
			ID:           l.id,
			Quantity:     l.quantity,
			UnitPrice:    l.unitPrice,
			LineDiscount: l.lineDiscount,
			Product:      sales.ProductRef{ID: l.productID},
		}
		if p, ok := s.products[l.productID]; ok && p.companyID == companyID {
			item.Product = p.ref
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, companyID int64, page sales.Page) ([]sales.SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]saleRow, 0)
	for _, row := range s.sales {
		if row.companyID == companyID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id > rows[j].id })

	out := make([]sales.SaleSummary, 0)
	for i := page.Offset; i < len(rows) && len(out) < page.Limit; i++ {
		out = append(out, s.summaryLocked(rows[i]))
	}
	return out, nil
}

func (s *Store) GetSale(_ context.Context, companyID, id int64) (sales.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saleLocked(companyID, id)
}

// CreateSale checks every reference before writing anything, so a failed
// check leaves no rows behind.
func (s *Store) CreateSale(ctx context.Context, companyID, userID int64, in sales.NewSale, total int64) (sales.Sale, error) {
	if err := ctx.Err(); err != nil {
		return sales.Sale{}, apperr.Store(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.clientLocked(companyID, in.ClientID); err != nil {
		return sales.Sale{}, err
	}
	if _, ok := s.currencies[in.CurrencyID]; !ok {
		return sales.Sale{}, apperr.Invalid("currency %d does not exist", in.CurrencyID)
	}
	var missing []int64
	for _, id := range in.ProductIDs() {
		p, ok := s.products[id]
		if !ok || p.companyID != companyID {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return sales.Sale{}, apperr.MissingReferences("products", missing)
	}

	row := saleRow{
		id:         s.nextID(),
		companyID:  companyID,
		clientID:   in.ClientID,
		currencyID: in.CurrencyID,
		userID:     userID,
		discount:   in.Discount,
		total:      total,
		legalName:  in.LegalName,
		taxID:      in.TaxID,
		createdAt:  s.now(),
	}
	lines := make([]lineRow, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, lineRow{
			id:           s.nextID(),
			productID:    it.ProductID,
			quantity:     it.Quantity,
			unitPrice:    it.UnitPrice,
			lineDiscount: it.LineDiscount,
		})
	}
	s.sales[row.id] = row
	s.lines[row.id] = lines
	return s.saleLocked(companyID, row.id)
}

func (s *Store) UpdateSale(_ context.Context, companyID, id int64, patch sales.SalePatch) (sales.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sales[id]
	if !ok || row.companyID != companyID {
		return sales.Sale{}, apperr.NotFound("sale", id)
	}
	row.legalName = patch.LegalName.Or(row.legalName)
	row.taxID = patch.TaxID.Or(row.taxID)
	if patch.Discount.Set {
		row.discount = patch.Discount.Value
		current, err := s.saleLocked(companyID, id)
		if err != nil {
			return sales.Sale{}, err
		}
		row.total = sales.ComputeStoredTotal(current.Items, row.discount)
	}
	s.sales[id] = row
	return s.saleLocked(companyID, id)
}

func (s *Store) DeleteSale(_ context.Context, companyID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sales[id]
	if !ok || row.companyID != companyID {
		return apperr.NotFound("sale", id)
	}
	delete(s.lines, id)
	delete(s.sales, id)
	return nil
}
