package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/shared-lists/internal/model"
)

const (
	defaultTake = 20
	maxTake     = 1000
)

type getListsResponse struct {
	Lists []model.ListView `json:"lists"`
}

type createListRequest struct {
	ListID string `json:"listId"`
	Name   string `json:"name"`
	Order  *int   `json:"order,omitempty"`
}

type createListResponse struct {
	OK   bool            `json:"ok"`
	List *model.ListView `json:"list,omitempty"`
}

type saveListRequest struct {
	List *model.ShoppingList `json:"list"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleGetLists(w http.ResponseWriter, r *http.Request) {
	take := defaultTake
	if raw := r.URL.Query().Get("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "take must be a non-negative integer")
			return
		}
		take = min(n, maxTake)
	}

	lists, err := storeFrom(r.Context()).GetLists(r.Context(), claimsFrom(r.Context()).Subject, take)
	if err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, getListsResponse{Lists: lists})
}

func (s *Server) handleLoadList(w http.ResponseWriter, r *http.Request) {
	view, err := storeFrom(r.Context()).LoadList(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "listId"))
	if err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ListID) == "" || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx := r.Context()
	st, userID := storeFrom(ctx), claimsFrom(ctx).Subject
	if err := st.CreateList(ctx, userID, req.ListID, req.Name, req.Order); err != nil {
		respondStoreError(w, s.log, err)
		return
	}

	view, err := st.LoadList(ctx, userID, req.ListID)
	if err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, createListResponse{OK: true, List: view})
}

func (s *Server) handleSaveList(w http.ResponseWriter, r *http.Request) {
	var req saveListRequest
	if err := decodeJSON(r, &req); err != nil || req.List == nil || strings.TrimSpace(req.List.ListID) == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.List.ListID != chi.URLParam(r, "listId") {
		respondError(w, http.StatusBadRequest, "route listId does not match body")
		return
	}

	list := *req.List
	list.UserID = claimsFrom(r.Context()).Subject
	if err := storeFrom(r.Context()).SaveList(r.Context(), list); err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	err := storeFrom(r.Context()).DeleteList(r.Context(), claimsFrom(r.Context()).Subject, chi.URLParam(r, "listId"))
	if err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
