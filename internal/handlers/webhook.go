package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/services"
)

// WebhookHandler speaks the CPX Research postback protocol: plain-text "1"
// acks, "0" rejects. The provider retries anything that is not an ack, so
// internal failures after signature verification still return "1".
type WebhookHandler struct {
	log        *logger.Logger
	webhookSvc services.WebhookService
}

func NewWebhookHandler(log *logger.Logger, webhookSvc services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		log:        log.With("handler", "WebhookHandler"),
		webhookSvc: webhookSvc,
	}
}

// GET|POST /api/webhooks/cpx
func (h *WebhookHandler) HandleCPXPostback(c *gin.Context) {
	postback := services.CPXPostback{
		Status:        param(c, "status"),
		TransactionID: param(c, "trans_id"),
		UserID:        param(c, "user_id"),
		SubID:         param(c, "sub_id"),
		SubID2:        param(c, "sub_id_2"),
		OfferID:       param(c, "offer_id"),
		Hash:          param(c, "hash"),
		ClickIP:       param(c, "ip_click"),
		Type:          param(c, "type"),
	}
	postback.AmountLocal, _ = strconv.ParseFloat(param(c, "amount_local"), 64)
	postback.AmountUSD, _ = strconv.ParseFloat(param(c, "amount_usd"), 64)

	if postback.Status == "" || postback.TransactionID == "" || postback.UserID == "" {
		c.String(http.StatusBadRequest, "0")
		return
	}

	if _, err := h.webhookSvc.ProcessCPXPostback(c.Request.Context(), postback); err != nil {
		if errors.Is(err, services.ErrInvalidPostbackHash) {
			c.String(http.StatusUnauthorized, "0")
			return
		}
		// Signature verified: ack so the provider stops retrying. Routing
		// errors banked the money; anything else is logged for ops.
		h.log.Error("Postback processing error",
			"trans_id", postback.TransactionID,
			"error", err)
	}
	c.String(http.StatusOK, "1")
}

// param reads from the query string first, then the form body, so both GET
// and POST postback styles work.
func param(c *gin.Context, name string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return c.PostForm(name)
}
