package handler

import (
	"errors"
	"net/http"

	"driver-provisioning/backend/internal/provisioning/service"
)

const (
	errInvalidBody = "invalid_request_body"
	errInternal    = "internal"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:            http.StatusBadRequest,
	service.KindConflictRepairFailure: http.StatusNotFound,
	service.KindNotFound:              http.StatusNotFound,
	service.KindPermission:            http.StatusInternalServerError,
	service.KindIdentityService:       http.StatusInternalServerError,
	service.KindProfileWrite:          http.StatusInternalServerError,
	service.KindProfileDelete:         http.StatusInternalServerError,
	service.KindIdentityDelete:        http.StatusInternalServerError,
}

func statusForKind(kind service.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind,omitempty"`
	Details    string   `json:"details,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	AuthUserID string   `json:"auth_user_id,omitempty"`
	Stage      string   `json:"stage,omitempty"`
}

// toResponse maps an engine error to a status and body. Errors that are not
// classified become a generic 500.
func toResponse(err error) (int, errorResponse) {
	var e *service.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Kind: errInternal}
	}
	body := errorResponse{Error: e.Detail(), Kind: string(e.Kind)}
	switch e.Kind {
	case service.KindValidation:
		body.Missing = e.Missing
	case service.KindPermission:
		body.Error = "User not allowed - check identity service settings and service role key permissions"
		body.Details = e.Detail()
	case service.KindProfileWrite:
		body.Error = "Driver auth user created but the driver record could not be saved"
		body.Details = e.Detail()
		body.AuthUserID = e.IdentityID
	case service.KindProfileDelete:
		body.Stage = service.StageProfile
	case service.KindIdentityDelete:
		body.Stage = service.StageIdentity
		body.AuthUserID = e.IdentityID
	}
	if body.Error == "" {
		body.Error = "Internal server error"
	}
	return statusForKind(e.Kind), body
}
