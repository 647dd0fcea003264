package auth

import "github.com/google/uuid"

// Company is the tenant boundary.
type Company struct {
	ID        int64  `json:"id_empresa"`
	Name      string `json:"nombre"`
	LegalName string `json:"razon_social"`
	TaxID     string `json:"nit"`
	Active    bool   `json:"estado"`
}

// User is a person provisioned inside exactly one company. Subject is the
// identifier issued by the identity provider.
type User struct {
	ID        int64     `json:"id_usuario"`
	Subject   uuid.UUID `json:"auth_uid"`
	FirstName string    `json:"nombre"`
	LastName  string    `json:"apellido"`
	Email     string    `json:"email"`
	IsOwner   bool      `json:"es_dueno"`
	Active    bool      `json:"estado"`
	CompanyID int64     `json:"empresas_id_empresa"`
}

// Role groups permissions within one company.
type Role struct {
	ID          int64  `json:"id_rol"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion,omitempty"`
	CompanyID   int64  `json:"empresas_id_empresa"`
}

// Permission is a global (action, resource) capability.
type Permission struct {
	ID       int64  `json:"id_permiso"`
	Action   string `json:"accion"`
	Resource string `json:"recurso"`
}

// Grant is the comparable key of a Permission.
type Grant struct {
	Action   string
	Resource string
}

func (p Permission) Grant() Grant {
	return Grant{Action: p.Action, Resource: p.Resource}
}
