package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/handler/http/response"
)

// CredentialHandler exchanges opaque access tokens for live upstream git
// credentials. Consumed by the candidate's git credential helper.
type CredentialHandler interface {
	Exchange(w http.ResponseWriter, r *http.Request)
}

type CredentialHandlerImpl struct {
	broker invitation.BrokerService
}

func NewCredentialHandler(broker invitation.BrokerService) CredentialHandler {
	return &CredentialHandlerImpl{broker: broker}
}

// Exchange implements CredentialHandler. The opaque token travels either
// as a bearer header or in the request body.
func (h *CredentialHandlerImpl) Exchange(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		var req struct {
			AccessToken string `json:"access_token"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.BadRequest(w, "Invalid request format", nil)
				return
			}
		}
		token = req.AccessToken
	}

	cred, err := h.broker.ExchangeCredential(r.Context(), token)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, cred)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
