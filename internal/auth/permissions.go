package auth

// Actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Resources.
const (
	ResourceClients    = "clientes"
	ResourceCurrencies = "monedas"
	ResourceSales      = "ventas"
)

// Catalog lists every (action, resource) pair the handlers check. The seed
// migration inserts the same rows into permisos.
func Catalog() []Grant {
	actions := []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
	resources := []string{ResourceClients, ResourceCurrencies, ResourceSales}
	out := make([]Grant, 0, len(actions)*len(resources))
	for _, res := range resources {
		for _, act := range actions {
			out = append(out, Grant{Action: act, Resource: res})
		}
	}
	return out
}
