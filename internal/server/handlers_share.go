package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/shared-lists/internal/model"
)

type shareListRequest struct {
	Target        string `json:"target"`
	RequireAccept *bool  `json:"requireAccept,omitempty"`
}

type shareListResponse struct {
	OK   bool            `json:"ok"`
	List *model.ListView `json:"list,omitempty"`
}

type leaveListResponse struct {
	OK     bool   `json:"ok"`
	ListID string `json:"listId"`
}

func (s *Server) handleShareList(w http.ResponseWriter, r *http.Request) {
	var req shareListRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Target) == "" {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}
	requireAccept := req.RequireAccept != nil && *req.RequireAccept

	ctx := r.Context()
	view, err := storeFrom(ctx).ShareList(ctx, claimsFrom(ctx).Subject, chi.URLParam(r, "listId"), req.Target, requireAccept)
	if err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, shareListResponse{OK: true, List: view})
}

func (s *Server) handleLeaveList(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listId")
	ctx := r.Context()
	if err := storeFrom(ctx).LeaveList(ctx, claimsFrom(ctx).Subject, listID); err != nil {
		respondStoreError(w, s.log, err)
		return
	}
	respondJSON(w, http.StatusOK, leaveListResponse{OK: true, ListID: listID})
}
