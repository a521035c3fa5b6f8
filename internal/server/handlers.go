package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type party struct {
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
}

func (p party) toModel() shipper.Party {
	return shipper.Party(p)
}

type sendRequest struct {
	Name         string  `json:"name"`
	OrderName    string  `json:"order_name,omitempty"`
	Sender       party   `json:"sender"`
	Recipient    party   `json:"recipient"`
	Weight       float64 `json:"weight"`
	PackageCount int     `json:"package_count"`
	ShippingDate string  `json:"shipping_date,omitempty"`
	TrackingRef  string  `json:"tracking_ref,omitempty"`
}

type sendResponse struct {
	TrackingCode string               `json:"tracking_code"`
	TrackingRef  string               `json:"tracking_ref"`
	TrackingLink string               `json:"tracking_link,omitempty"`
	Price        float64              `json:"price"`
	Attachments  []gateway.Attachment `json:"attachments"`
	// Error is set when the shipment was created but its label could not
	// be attached.
	Error *errorResponse `json:"error,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.ShippingDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid shipping_date"})
		return
	}

	shipment := &gateway.Shipment{
		Name:         req.Name,
		OrderName:    req.OrderName,
		Sender:       req.Sender.toModel(),
		Recipient:    req.Recipient.toModel(),
		Weight:       req.Weight,
		PackageCount: req.PackageCount,
		ShippingDate: date,
		TrackingRef:  req.TrackingRef,
	}
	result, err := s.gateway.Send(r.Context(), chi.URLParam(r, "account"), shipment)
	if result == nil {
		s.writeError(w, err)
		return
	}

	resp := sendResponse{
		TrackingCode: result.TrackingCode,
		TrackingRef:  shipment.TrackingRef,
		Price:        result.Price,
		Attachments:  result.Attachments,
	}
	if result.TrackingCode != "" {
		resp.TrackingLink = gateway.TrackingLink(result.TrackingCode)
	}
	if err != nil {
		status, body := s.errorStatus(err)
		resp.Error = &body
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackingRef string `json:"tracking_ref"`
	}
	if !decode(w, r, &req) {
		return
	}
	ok, err := s.gateway.Cancel(r.Context(), chi.URLParam(r, "account"), req.TrackingRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": ok})
}

type trackingResponse struct {
	TrackingCode string                `json:"tracking_code"`
	TrackingLink string                `json:"tracking_link"`
	State        shipper.DeliveryState `json:"state"`
	Current      string                `json:"current"`
	History      []string              `json:"history"`
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	update, err := s.gateway.UpdateTrackingState(r.Context(), chi.URLParam(r, "account"), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if update == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "ref is required"})
		return
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		TrackingCode: update.TrackingCode,
		TrackingLink: gateway.TrackingLink(update.TrackingCode),
		State:        update.State,
		Current:      update.Current,
		History:      update.History,
	})
}

func (s *Server) handleTrackingLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": s.gateway.TrackingLink(chi.URLParam(r, "code"))})
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	attachments, err := s.gateway.Label(r.Context(), chi.URLParam(r, "account"), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]gateway.Attachment{"attachments": attachments})
}

func (s *Server) handleBulkTracking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"))
	if err != nil || from.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "from is required (YYYY-MM-DD)"})
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid to"})
		return
	}
	page, err := queryInt(q.Get("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid page"})
		return
	}
	limit, err := queryInt(q.Get("page_limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid page_limit"})
		return
	}

	result, err := s.gateway.BulkTracking(r.Context(), chi.URLParam(r, "account"), &shipper.BulkTrackingQuery{
		From:      from,
		To:        to,
		Page:      page,
		PageLimit: limit,
		OrderBy:   q.Get("order_by"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type manifestRequest struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Format     string   `json:"format"`
	AccountIDs []string `json:"account_ids"`
}

func (s *Server) handleManifests(w http.ResponseWriter, r *http.Request) {
	var req manifestRequest
	if !decode(w, r, &req) {
		return
	}
	from, err := parseDate(req.From)
	if err != nil || from.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "from is required (YYYY-MM-DD)"})
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid to"})
		return
	}

	sets, err := s.gateway.PullManifests(r.Context(), gateway.ManifestQuery{
		From:       from,
		To:         to,
		Format:     shipper.ManifestFormat(req.Format),
		AccountIDs: req.AccountIDs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]gateway.ManifestSet{"manifests": sets})
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date    string `json:"date"`
		MinHour string `json:"min_hour"`
		MaxHour string `json:"max_hour"`
	}
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil || date.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "date is required (YYYY-MM-DD)"})
		return
	}

	code, err := s.gateway.RequestPickup(r.Context(), chi.URLParam(r, "account"), &shipper.PickupRequest{
		Date: date, MinHour: req.MinHour, MaxHour: req.MaxHour,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"pickup_code": code})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.ValidateAccount(r.Context(), chi.URLParam(r, "account")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) handleServiceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.gateway.ServiceTypes(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]shipper.ServiceType{"service_types": types})
}

type accountSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Protocol    shipper.Protocol `json:"protocol"`
	Production  bool             `json:"production"`
	ServiceType string           `json:"service_type,omitempty"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := s.gateway.Registry().All()
	out := make([]accountSummary, len(accounts))
	for i, a := range accounts {
		out[i] = accountSummary{
			ID:          a.ID,
			Name:        a.Name,
			Protocol:    a.Protocol,
			Production:  a.Production,
			ServiceType: a.ServiceType,
		}
	}
	writeJSON(w, http.StatusOK, map[string][]accountSummary{"accounts": out})
}

// writeError maps gateway errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, body := s.errorStatus(err)
	writeJSON(w, status, body)
}

func (s *Server) errorStatus(err error) (int, errorResponse) {
	resp := errorResponse{Message: err.Error()}
	var shipperErr *shipper.ShipperError
	if errors.As(err, &shipperErr) {
		resp.Kind = string(shipperErr.Kind)
		resp.Code = shipperErr.Code
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shipper.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrStateNotRecognized):
		status = http.StatusConflict
	case errors.Is(err, shipper.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, shipper.ErrUnsupportedOperation):
		status = http.StatusNotImplemented
	case errors.Is(err, shipper.ErrCarrierRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shipper.ErrAuthenticationFailed), errors.Is(err, shipper.ErrRemoteFailure):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	return status, resp
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// queryInt parses an optional non-negative integer parameter.
func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
