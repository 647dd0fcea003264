package httpapi

import (
	"fmt"
	"net/http"

	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

// --- clientes ---

func (a *API) listClients(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	list, err := a.sales.ListClients(r.Context(), sc)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.GetClient(r.Context(), sc, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) createClient(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	var in sales.NewClient
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.CreateClient(r.Context(), sc, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/clientes/%d", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateClient(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var patch sales.ClientPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.UpdateClient(r.Context(), sc, id, patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteClient(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.sales.DeleteClient(r.Context(), sc, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- monedas ---

func (a *API) listCurrencies(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	list, err := a.sales.ListCurrencies(r.Context(), sc)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getCurrency(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.GetCurrency(r.Context(), sc, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) createCurrency(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	var in sales.NewCurrency
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.CreateCurrency(r.Context(), sc, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/monedas/%d", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateCurrency(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var patch sales.CurrencyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		handleError(w, r, err)
		return
	}
	c, err := a.sales.UpdateCurrency(r.Context(), sc, id, patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteCurrency(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.sales.DeleteCurrency(r.Context(), sc, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
