package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ventas.io/internal/apperr"
	"ventas.io/internal/sales"
)

type scanner interface {
	Scan(dest ...any) error
}

// --- clients ---

const clientColumns = `id_cliente, nombre, coalesce(tipo, ''), coalesce(telefono, ''), email, coalesce(notas, ''), empresas_id_empresa`

func scanClient(row scanner) (sales.Client, error) {
	var c sales.Client
	err := row.Scan(&c.ID, &c.Name, &c.Kind, &c.Phone, &c.Email, &c.Notes, &c.CompanyID)
	return c, err
}

func (s *Store) ListClients(ctx context.Context, companyID int64) ([]sales.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+clientColumns+`
		from clientes
		where empresas_id_empresa = $1
		order by id_cliente
	`, companyID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make([]sales.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *Store) GetClient(ctx context.Context, companyID, id int64) (sales.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `
		select `+clientColumns+`
		from clientes
		where id_cliente = $1 and empresas_id_empresa = $2
	`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Client{}, apperr.NotFound("client", id)
	}
	if err != nil {
		return sales.Client{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) CreateClient(ctx context.Context, companyID int64, in sales.NewClient) (sales.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `
		insert into clientes (nombre, tipo, telefono, email, notas, empresas_id_empresa)
		values ($1, $2, $3, $4, $5, $6)
		returning `+clientColumns,
		in.Name, in.Kind, in.Phone, in.Email, in.Notes, companyID))
	if err != nil {
		return sales.Client{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, companyID, id int64, patch sales.ClientPatch) (sales.Client, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, opt sales.Optional[string]) {
		if !opt.Set {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, opt.Value)
		idx++
	}
	add("nombre", patch.Name)
	add("tipo", patch.Kind)
	add("telefono", patch.Phone)
	add("email", patch.Email)
	add("notas", patch.Notes)
	if len(sets) == 0 {
		return s.GetClient(ctx, companyID, id)
	}

	query := fmt.Sprintf(`update clientes set %s where id_cliente = $%d and empresas_id_empresa = $%d returning %s`,
		strings.Join(sets, ", "), idx, idx+1, clientColumns)
	args = append(args, id, companyID)
	c, err := scanClient(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Client{}, apperr.NotFound("client", id)
	}
	if err != nil {
		return sales.Client{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) DeleteClient(ctx context.Context, companyID, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from clientes where id_cliente = $1 and empresas_id_empresa = $2`, id, companyID)
	if err != nil {
		return storeErr(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if aff == 0 {
		return apperr.NotFound("client", id)
	}
	return nil
}

// --- currencies ---

func (s *Store) ListCurrencies(ctx context.Context) ([]sales.Currency, error) {
	rows, err := s.db.QueryContext(ctx, `select id_moneda, nombre from moneda order by id_moneda`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make([]sales.Currency, 0)
	for rows.Next() {
		var c sales.Currency
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, storeErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *Store) GetCurrency(ctx context.Context, id int64) (sales.Currency, error) {
	var c sales.Currency
	err := s.db.QueryRowContext(ctx, `select id_moneda, nombre from moneda where id_moneda = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Currency{}, apperr.NotFound("currency", id)
	}
	if err != nil {
		return sales.Currency{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) CreateCurrency(ctx context.Context, in sales.NewCurrency) (sales.Currency, error) {
	var c sales.Currency
	err := s.db.QueryRowContext(ctx, `
		insert into moneda (nombre) values ($1)
		returning id_moneda, nombre
	`, in.Name).Scan(&c.ID, &c.Name)
	if err != nil {
		return sales.Currency{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) UpdateCurrency(ctx context.Context, id int64, patch sales.CurrencyPatch) (sales.Currency, error) {
	if !patch.Name.Set {
		return s.GetCurrency(ctx, id)
	}
	var c sales.Currency
	err := s.db.QueryRowContext(ctx, `
		update moneda set nombre = $1 where id_moneda = $2
		returning id_moneda, nombre
	`, patch.Name.Value, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Currency{}, apperr.NotFound("currency", id)
	}
	if err != nil {
		return sales.Currency{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) DeleteCurrency(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from moneda where id_moneda = $1`, id)
	if err != nil {
		return storeErr(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if aff == 0 {
		return apperr.NotFound("currency", id)
	}
	return nil
}

// --- sales ---

const saleSelect = `
	select v.id_venta, v.fecha_creacion, v.descuento, v.total, v.razon_social, v.nit,
	       c.id_cliente, c.nombre, m.id_moneda, m.nombre,
	       u.id_usuario, u.nombre, coalesce(u.apellido, ''), v.empresas_id_empresa
	from venta v
	join clientes c on c.id_cliente = v.clientes_id_cliente
	join moneda m on m.id_moneda = v.moneda_id_moneda
	join usuarios u on u.id_usuario = v.usuarios_id_usuario
`

func scanSummary(row scanner) (sales.SaleSummary, error) {
	var v sales.SaleSummary
	err := row.Scan(
		&v.ID, &v.CreatedAt, &v.Discount, &v.Total, &v.LegalName, &v.TaxID,
		&v.Client.ID, &v.Client.Name, &v.Currency.ID, &v.Currency.Name,
		&v.User.ID, &v.User.FirstName, &v.User.LastName, &v.CompanyID,
	)
	if err == nil {
		v.CreatedAt = v.CreatedAt.UTC()
	}
	return v, err
}

func (s *Store) ListSales(ctx context.Context, companyID int64, page sales.Page) ([]sales.SaleSummary, error) {
	rows, err := s.db.QueryContext(ctx, saleSelect+`
		where v.empresas_id_empresa = $1
		order by v.id_venta desc
		limit $2 offset $3
	`, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := make([]sales.SaleSummary, 0)
	for rows.Next() {
		v, err := scanSummary(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *Store) GetSale(ctx context.Context, companyID, id int64) (sales.Sale, error) {
	return getSale(ctx, s.db, companyID, id)
}

func getSale(ctx context.Context, q querier, companyID, id int64) (sales.Sale, error) {
	sum, err := scanSummary(q.QueryRowContext(ctx, saleSelect+`
		where v.id_venta = $1 and v.empresas_id_empresa = $2
	`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, apperr.NotFound("sale", id)
	}
	if err != nil {
		return sales.Sale{}, storeErr(err)
	}
	items, err := saleItems(ctx, q, id)
	if err != nil {
		return sales.Sale{}, err
	}
	return sales.Sale{SaleSummary: sum, Items: items}, nil
}

func saleItems(ctx context.Context, q querier, saleID int64) ([]sales.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		select d.id_venta_detalle, d.cantidad, d.precio_unitario, d.descuento_item,
		       p.id_producto, p.nombre, coalesce(p.codigo_sku, ''), coalesce(p.codigo_barra, '')
		from venta_detalle d
		join productos p on p.id_producto = d.productos_id_producto
		where d.venta_id_venta = $1
		order by d.id_venta_detalle
	`, saleID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	items := make([]sales.LineItem, 0)
	for rows.Next() {
		var it sales.LineItem
		if err := rows.Scan(&it.ID, &it.Quantity, &it.UnitPrice, &it.LineDiscount,
			&it.Product.ID, &it.Product.Name, &it.Product.SKU, &it.Product.Barcode); err != nil {
			return nil, storeErr(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// CreateSale runs the reference checks and every insert in one transaction.
// Any early return rolls back, so a missing product leaves no rows.
func (s *Store) CreateSale(ctx context.Context, companyID, userID int64, in sales.NewSale, total int64) (sales.Sale, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return sales.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `select 1 from clientes where id_cliente = $1 and empresas_id_empresa = $2`,
		in.ClientID, companyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, apperr.NotFound("client", in.ClientID)
	}
	if err != nil {
		return sales.Sale{}, storeErr(err)
	}

	err = tx.QueryRowContext(ctx, `select 1 from moneda where id_moneda = $1`, in.CurrencyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, apperr.Invalid("currency %d does not exist", in.CurrencyID)
	}
	if err != nil {
		return sales.Sale{}, storeErr(err)
	}

	if err := checkProducts(ctx, tx, companyID, in.ProductIDs()); err != nil {
		return sales.Sale{}, err
	}

	var saleID int64
	err = tx.QueryRowContext(ctx, `insert into venta (descuento, razon_social, nit, clientes_id_cliente, moneda_id_moneda, usuarios_id_usuario, total, empresas_id_empresa)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id_venta`,
		in.Discount, in.LegalName, in.TaxID, in.ClientID, in.CurrencyID, userID, total, companyID).Scan(&saleID)
	if err != nil {
		return sales.Sale{}, storeErr(err)
	}
	for _, it := range in.Items {
		if _, err := tx.ExecContext(ctx, `insert into venta_detalle (venta_id_venta, productos_id_producto, cantidad, precio_unitario, descuento_item)
			values ($1, $2, $3, $4, $5)`,
			saleID, it.ProductID, it.Quantity, it.UnitPrice, it.LineDiscount); err != nil {
			return sales.Sale{}, storeErr(err)
		}
	}

	sale, err := getSale(ctx, tx, companyID, saleID)
	if err != nil {
		return sales.Sale{}, err
	}
	if err := tx.Commit(); err != nil {
		return sales.Sale{}, storeErr(err)
	}
	return sale, nil
}

// checkProducts reports every requested product id that does not belong to companyID.
func checkProducts(ctx context.Context, q querier, companyID int64, requested []int64) error {
	ids := uniqueIDs(requested)
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, companyID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`select id_producto from productos where empresas_id_empresa = $1 and id_producto in (%s)`,
		placeholders(2, len(ids))), args...)
	if err != nil {
		return storeErr(err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return storeErr(err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return storeErr(err)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return apperr.MissingReferences("products", missing)
	}
	return nil
}

func (s *Store) UpdateSale(ctx context.Context, companyID, id int64, patch sales.SalePatch) (sales.Sale, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return sales.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `select 1 from venta where id_venta = $1 and empresas_id_empresa = $2 for update`, id, companyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sales.Sale{}, apperr.NotFound("sale", id)
	}
	if err != nil {
		return sales.Sale{}, storeErr(err)
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if patch.LegalName.Set {
		sets = append(sets, fmt.Sprintf("razon_social = $%d", idx))
		args = append(args, patch.LegalName.Value)
		idx++
	}
	if patch.TaxID.Set {
		sets = append(sets, fmt.Sprintf("nit = $%d", idx))
		args = append(args, patch.TaxID.Value)
		idx++
	}
	if patch.Discount.Set {
		items, err := saleItems(ctx, tx, id)
		if err != nil {
			return sales.Sale{}, err
		}
		sets = append(sets, fmt.Sprintf("descuento = $%d", idx), fmt.Sprintf("total = $%d", idx+1))
		args = append(args, patch.Discount.Value, sales.ComputeStoredTotal(items, patch.Discount.Value))
		idx += 2
	}
	if len(sets) > 0 {
		query := fmt.Sprintf(`update venta set %s where id_venta = $%d and empresas_id_empresa = $%d`, strings.Join(sets, ", "), idx, idx+1)
		args = append(args, id, companyID)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return sales.Sale{}, storeErr(err)
		}
	}

	sale, err := getSale(ctx, tx, companyID, id)
	if err != nil {
		return sales.Sale{}, err
	}
	if err := tx.Commit(); err != nil {
		return sales.Sale{}, storeErr(err)
	}
	return sale, nil
}

func (s *Store) DeleteSale(ctx context.Context, companyID, id int64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `select 1 from venta where id_venta = $1 and empresas_id_empresa = $2 for update`, id, companyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("sale", id)
	}
	if err != nil {
		return storeErr(err)
	}
	if _, err := tx.ExecContext(ctx, `delete from venta_detalle where venta_id_venta = $1`, id); err != nil {
		return storeErr(err)
	}
	if _, err := tx.ExecContext(ctx, `delete from venta where id_venta = $1`, id); err != nil {
		return storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}
