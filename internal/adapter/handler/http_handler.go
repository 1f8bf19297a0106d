package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mossvale/stallworks/internal/core/domain"
	"github.com/mossvale/stallworks/internal/core/service"
)

type HTTPHandler struct {
	engine *service.Engine
}

func NewHTTPHandler(engine *service.Engine) *HTTPHandler {
	return &HTTPHandler{engine: engine}
}

type barterLinePayload struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

type createRequestPayload struct {
	BuyerID         string              `json:"buyer_id"`
	BuyerCharacter  string              `json:"buyer_character"`
	VendorCharacter string              `json:"vendor_character"`
	ItemName        string              `json:"item_name"`
	Quantity        int                 `json:"quantity"`
	Payment         string              `json:"payment"`
	BarterOffer     []barterLinePayload `json:"barter_offer,omitempty"`
}

type fulfillPayload struct {
	FulfillmentID string `json:"fulfillment_id"`
}

type cancelPayload struct {
	FulfillmentID string `json:"fulfillment_id"`
	BuyerID       string `json:"buyer_id"`
}

func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid_request", "invalid request body", nil)
		return
	}
	if req.BuyerID == "" || req.BuyerCharacter == "" || req.VendorCharacter == "" || req.ItemName == "" {
		writeFailure(w, http.StatusBadRequest, "invalid_request", "missing required fields", nil)
		return
	}

	in := service.CreateRequestInput{
		BuyerID:         req.BuyerID,
		BuyerCharacter:  req.BuyerCharacter,
		VendorCharacter: req.VendorCharacter,
		ItemName:        req.ItemName,
		Quantity:        req.Quantity,
		Payment:         domain.PaymentMethod(req.Payment),
	}
	for _, line := range req.BarterOffer {
		in.BarterOffer = append(in.BarterOffer, domain.BarterLine{ItemName: line.ItemName, Quantity: line.Quantity})
	}

	created, err := h.engine.CreateRequest(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"fulfillment_id": created.ID,
		"quoted_price":   created.QuotedTokenPrice,
		"expires_at":     created.ExpiresAt,
	})
}

func (h *HTTPHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fulfillPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FulfillmentID == "" {
		writeFailure(w, http.StatusBadRequest, "invalid_request", "missing fulfillment_id", nil)
		return
	}

	result, err := h.engine.Fulfill(r.Context(), req.FulfillmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"fulfillment_id":  result.Request.ID,
		"item_name":       result.Request.ItemName,
		"quantity":        result.Request.Quantity,
		"unit_price":      result.UnitPrice,
		"token_total":     result.TokenTotal,
		"buyer_balance":   result.BuyerBalance,
		"vendor_balance":  result.VendorBalance,
		"stock_remaining": result.StockRemaining,
		"buyer_holding":   result.BuyerHolding,
		"self_purchase":   result.SelfPurchase,
	})
}

func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FulfillmentID == "" || req.BuyerID == "" {
		writeFailure(w, http.StatusBadRequest, "invalid_request", "missing required fields", nil)
		return
	}

	if err := h.engine.Cancel(r.Context(), req.FulfillmentID, req.BuyerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeFailure(w, http.StatusBadRequest, "invalid_request", "missing id", nil)
		return
	}

	req, err := h.engine.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"fulfillment_id":   req.ID,
		"buyer_character":  req.BuyerCharacter,
		"vendor_character": req.VendorCharacter,
		"item_name":        req.ItemName,
		"quantity":         req.Quantity,
		"payment":          req.Payment,
		"status":           req.Status,
		"quoted_price":     req.QuotedTokenPrice,
		"expires_at":       req.ExpiresAt,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	status, kind, details := errorPayload(err)
	writeFailure(w, status, kind, err.Error(), details)
}

func writeFailure(w http.ResponseWriter, status int, kind, message string, details map[string]any) {
	body := map[string]any{
		"success":    false,
		"error_kind": kind,
		"message":    message,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
