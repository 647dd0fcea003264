package httpapi

import (
	"net/http"

	"ventas.io/internal/auth"
)

type grantResponse struct {
	Action   string `json:"accion"`
	Resource string `json:"recurso"`
}

type meResponse struct {
	User    auth.User       `json:"usuario"`
	Company auth.Company    `json:"empresa"`
	Roles   []auth.Role     `json:"roles"`
	Grants  []grantResponse `json:"permisos"`
	IsOwner bool            `json:"es_dueno"`
}

// me describes the resolved security context. It needs no permission.
func (a *API) me(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	roles := sc.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	grants := make([]grantResponse, 0)
	for _, g := range sc.Grants() {
		grants = append(grants, grantResponse{Action: g.Action, Resource: g.Resource})
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:    sc.User,
		Company: sc.Company,
		Roles:   roles,
		Grants:  grants,
		IsOwner: sc.User.IsOwner,
	})
}
