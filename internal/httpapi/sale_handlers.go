package httpapi

import (
	"fmt"
	"math"
	"net/http"

	"ventas.io/internal/auth"
	"ventas.io/internal/sales"
)

func (a *API) listSales(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	q := r.URL.Query()
	limit, err := parseIntParam("limit", q.Get("limit"), sales.DefaultPageLimit, 1, sales.MaxPageLimit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	offset, err := parseIntParam("offset", q.Get("offset"), 0, 0, math.MaxInt32)
	if err != nil {
		handleError(w, r, err)
		return
	}
	list, err := a.sales.ListSales(r.Context(), sc, sales.Page{Limit: limit, Offset: offset})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getSale(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	sale, err := a.sales.GetSale(r.Context(), sc, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) createSale(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	var in sales.NewSale
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	sale, err := a.sales.CreateSale(r.Context(), sc, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/ventas/%d", sale.ID))
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) updateSale(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var patch sales.SalePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		handleError(w, r, err)
		return
	}
	sale, err := a.sales.UpdateSale(r.Context(), sc, id, patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) deleteSale(w http.ResponseWriter, r *http.Request, sc auth.SecurityContext) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := a.sales.DeleteSale(r.Context(), sc, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
