package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/fitsocial/followgraph/internal/service"
)

// RelationsAPI provides the relations.* methods
type RelationsAPI struct {
	svc *service.Service
}

// NewRelationsAPI creates the relations API
func NewRelationsAPI(svc *service.Service) *RelationsAPI {
	return &RelationsAPI{svc: svc}
}

type targetParams struct {
	Target string `json:"target" binding:"required"`
}

type listParams struct {
	Offset int `json:"offset" binding:"min=0"`
	Limit  int `json:"limit" binding:"min=0"`
}

type pairCall func(c *gin.Context, actor, target string) (service.PairResult, error)

// pair adapts a service transition to a method handler taking {"target"}
func (r *RelationsAPI) pair(call pairCall) MethodHandler {
	return func(c *gin.Context, params json.RawMessage) (interface{}, error) {
		id, err := actor(c)
		if err != nil {
			return nil, err
		}
		var p targetParams
		if err := bindParams(params, &p); err != nil {
			return nil, err
		}
		return call(c, id, p.Target)
	}
}

// SendFollowRequest handles relations.send_follow_request
func (r *RelationsAPI) SendFollowRequest() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.SendFollowRequest(c.Request.Context(), actor, target)
	})
}

// CancelFollowRequest handles relations.cancel_follow_request
func (r *RelationsAPI) CancelFollowRequest() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.CancelFollowRequest(c.Request.Context(), actor, target)
	})
}

// AcceptFollowRequest handles relations.accept_follow_request
func (r *RelationsAPI) AcceptFollowRequest() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.AcceptFollowRequest(c.Request.Context(), actor, target)
	})
}

// DeclineFollowRequest handles relations.decline_follow_request
func (r *RelationsAPI) DeclineFollowRequest() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.DeclineFollowRequest(c.Request.Context(), actor, target)
	})
}

// Unfollow handles relations.unfollow
func (r *RelationsAPI) Unfollow() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.Unfollow(c.Request.Context(), actor, target)
	})
}

// RemoveFollower handles relations.remove_follower
func (r *RelationsAPI) RemoveFollower() MethodHandler {
	return r.pair(func(c *gin.Context, actor, target string) (service.PairResult, error) {
		return r.svc.RemoveFollower(c.Request.Context(), actor, target)
	})
}

// FollowStatus handles relations.follow_status
func (r *RelationsAPI) FollowStatus(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := actor(c)
	if err != nil {
		return nil, err
	}
	var p targetParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	return r.svc.FollowStatus(c.Request.Context(), id, p.Target)
}

type listCall func(c *gin.Context, actor string, offset, limit int) (service.MemberPage, error)

func (r *RelationsAPI) list(call listCall) MethodHandler {
	return func(c *gin.Context, params json.RawMessage) (interface{}, error) {
		id, err := actor(c)
		if err != nil {
			return nil, err
		}
		var p listParams
		if err := bindParams(params, &p); err != nil {
			return nil, err
		}
		return call(c, id, p.Offset, p.Limit)
	}
}

// ListFollowers handles relations.list_followers
func (r *RelationsAPI) ListFollowers() MethodHandler {
	return r.list(func(c *gin.Context, actor string, offset, limit int) (service.MemberPage, error) {
		return r.svc.ListFollowers(c.Request.Context(), actor, offset, limit)
	})
}

// ListFollowing handles relations.list_following
func (r *RelationsAPI) ListFollowing() MethodHandler {
	return r.list(func(c *gin.Context, actor string, offset, limit int) (service.MemberPage, error) {
		return r.svc.ListFollowing(c.Request.Context(), actor, offset, limit)
	})
}

// ListSentRequests handles relations.list_sent_requests
func (r *RelationsAPI) ListSentRequests() MethodHandler {
	return r.list(func(c *gin.Context, actor string, offset, limit int) (service.MemberPage, error) {
		return r.svc.ListSentRequests(c.Request.Context(), actor, offset, limit)
	})
}

// ListReceivedRequests handles relations.list_received_requests
func (r *RelationsAPI) ListReceivedRequests() MethodHandler {
	return r.list(func(c *gin.Context, actor string, offset, limit int) (service.MemberPage, error) {
		return r.svc.ListReceivedRequests(c.Request.Context(), actor, offset, limit)
	})
}
