package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	// SetToken and DeleteToken default to the keyring functions in secrets.
	SetToken    func(account, token string) error
	DeleteToken func(account string) error
	// Changed is called after the stored token changes so the running
	// feed client can pick it up.
	Changed func()
}

type setFeedTokenReq struct {
	Token string `json:"token"`
}

// SetFeedToken stores the feed bearer token in the OS keychain. It applies
// from the next feed request on.
func (h SecretsHandler) SetFeedToken(w http.ResponseWriter, r *http.Request) {
	var req setFeedTokenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	set := h.SetToken
	if set == nil {
		set = secrets.SetFeedToken
	}
	cfg := h.CfgVal.Load().(config.Config)
	if err := set(secrets.FeedKeyringAccount(cfg), req.Token); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store token: "+err.Error())
		return
	}
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFeedToken removes the stored token. The env fallback, if set,
// takes over.
func (h SecretsHandler) DeleteFeedToken(w http.ResponseWriter, r *http.Request) {
	del := h.DeleteToken
	if del == nil {
		del = secrets.DeleteFeedToken
	}
	cfg := h.CfgVal.Load().(config.Config)
	if err := del(secrets.FeedKeyringAccount(cfg)); err != nil {
		if errors.Is(err, secrets.ErrTokenNotFound) {
			WriteError(w, r, http.StatusNotFound, "not_found", "no feed token stored")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "delete_failed", "failed to delete token: "+err.Error())
		return
	}
	h.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) changed() {
	if h.Changed != nil {
		h.Changed()
	}
}
