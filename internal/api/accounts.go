package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/internal/service"
)

// AccountsAPI provides the accounts.* methods
type AccountsAPI struct {
	svc *service.Service
}

// NewAccountsAPI creates the accounts API
func NewAccountsAPI(svc *service.Service) *AccountsAPI {
	return &AccountsAPI{svc: svc}
}

type accountParams struct {
	Account string `json:"account" binding:"required"`
}

type provisionParams struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Privacy     string `json:"privacy" binding:"omitempty,oneof=public private"`
}

type profileParams struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type privacyParams struct {
	Privacy string `json:"privacy" binding:"required,oneof=public private"`
}

type canViewResult struct {
	Viewer  string `json:"viewer,omitempty"`
	Target  string `json:"target"`
	Visible bool   `json:"visible"`
}

// GetAccount handles accounts.get_account. Anonymous callers see public
// accounts only
func (a *AccountsAPI) GetAccount(c *gin.Context, params json.RawMessage) (interface{}, error) {
	v, err := viewer(c)
	if err != nil {
		return nil, err
	}
	var p accountParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.svc.GetAccount(c.Request.Context(), v, p.Account)
}

// GetOwnAccount handles accounts.get_own_account
func (a *AccountsAPI) GetOwnAccount(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	if err := bindParams(params, &struct{}{}); err != nil {
		return nil, err
	}
	return a.svc.GetOwnAccount(c.Request.Context(), id)
}

// Provision handles accounts.provision. The account id is the token
// subject
func (a *AccountsAPI) Provision(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	var p provisionParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.svc.ProvisionAccount(c.Request.Context(), relation.Account{
		ID:          id,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Privacy:     relation.Privacy(p.Privacy),
	})
}

// UpdateProfile handles accounts.update_profile. Omitted fields keep their
// current value
func (a *AccountsAPI) UpdateProfile(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	var p profileParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return a.svc.UpdateProfile(c.Request.Context(), id, p.Username, p.DisplayName)
}

// SetPrivacy handles accounts.set_privacy
func (a *AccountsAPI) SetPrivacy(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	var p privacyParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	privacy, err := relation.ParsePrivacy(p.Privacy)
	if err != nil {
		return nil, err
	}
	return a.svc.SetPrivacy(c.Request.Context(), id, privacy)
}

// TogglePrivacy handles accounts.toggle_privacy
func (a *AccountsAPI) TogglePrivacy(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	if err := bindParams(params, &struct{}{}); err != nil {
		return nil, err
	}
	return a.svc.TogglePrivacy(c.Request.Context(), id)
}

// CanView handles accounts.can_view for the calling viewer
func (a *AccountsAPI) CanView(c *gin.Context, params json.RawMessage) (interface{}, error) {
	v, err := viewer(c)
	if err != nil {
		return nil, err
	}
	var p accountParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	visible, err := a.svc.CanView(c.Request.Context(), v, p.Account)
	if err != nil {
		return nil, err
	}
	return canViewResult{Viewer: v, Target: p.Account, Visible: visible}, nil
}
