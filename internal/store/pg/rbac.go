package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ventas.io/internal/apperr"
	"ventas.io/internal/auth"
)

func (s *Store) LookupSubject(ctx context.Context, subject uuid.UUID) (auth.User, auth.Company, error) {
	var (
		u auth.User
		c auth.Company
	)
	err := s.db.QueryRowContext(ctx, `
		select u.id_usuario, u.auth_uid, u.nombre, coalesce(u.apellido, ''), coalesce(u.email, ''),
		       u.es_dueno, u.estado, u.empresas_id_empresa,
		       e.id_empresa, e.nombre, coalesce(e.razon_social, ''), coalesce(e.nit, ''), e.estado
		from usuarios u
		join empresas e on e.id_empresa = u.empresas_id_empresa
		where u.auth_uid = $1
	`, subject.String()).Scan(
		&u.ID, &u.Subject, &u.FirstName, &u.LastName, &u.Email,
		&u.IsOwner, &u.Active, &u.CompanyID,
		&c.ID, &c.Name, &c.LegalName, &c.TaxID, &c.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.Company{}, apperr.ErrSubjectNotProvisioned
	}
	if err != nil {
		return auth.User{}, auth.Company{}, storeErr(err)
	}
	return u, c, nil
}

// RolesForUser joins through usuarios_roles and keeps only roles owned by
// companyID, so a stray assignment to another company's role grants nothing.
func (s *Store) RolesForUser(ctx context.Context, userID, companyID int64) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id_rol, r.nombre, coalesce(r.descripcion, ''), r.empresas_id_empresa
		from roles r
		join usuarios_roles ur on ur.roles_id_rol = r.id_rol
		where ur.usuarios_id_usuario = $1 and r.empresas_id_empresa = $2
		order by r.id_rol
	`, userID, companyID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CompanyID); err != nil {
			return nil, storeErr(err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return roles, nil
}

func (s *Store) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]auth.Permission, error) {
	roleIDs = uniqueIDs(roleIDs)
	if len(roleIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`
		select distinct p.id_permiso, p.accion, p.recurso
		from permisos p
		join roles_permisos rp on rp.permisos_id_permiso = p.id_permiso
		where rp.roles_id_rol in (%s)
		order by p.id_permiso
	`, placeholders(1, len(roleIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Resource); err != nil {
			return nil, storeErr(err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return perms, nil
}
