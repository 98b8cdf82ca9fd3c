package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"driver-provisioning/backend/internal/provisioning/service"
	"driver-provisioning/backend/internal/server/middleware"
)

// Provisioner is the provisioning engine used by the handler.
type Provisioner interface {
	Provision(ctx context.Context, in service.ProvisionInput) (*service.ProvisionResult, error)
}

// Deprovisioner is the deprovisioning engine used by the handler.
type Deprovisioner interface {
	Deprovision(ctx context.Context, in service.DeprovisionInput) (*service.DeprovisionResult, error)
}

// ErrorTracker receives failures that end in a 500.
type ErrorTracker interface {
	Capture(op string, err error, tags map[string]string)
}

// Handler serves the provision and deprovision endpoints.
type Handler struct {
	provisioner   Provisioner
	deprovisioner Deprovisioner
	tracker       ErrorTracker
	logger        *slog.Logger
}

// NewHandler returns a Handler. tracker and logger may be nil.
func NewHandler(p Provisioner, d Deprovisioner, tracker ErrorTracker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provisioner: p, deprovisioner: d, tracker: tracker, logger: logger}
}

type provisionRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"fullName"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"licenseNumber"`
	Company       string `json:"company"`
	Vehicle       string `json:"vehicle"`
	Registration  string `json:"registration"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type provisionResponse struct {
	Success           bool         `json:"success"`
	AuthUserID        string       `json:"auth_user_id"`
	DriverID          string       `json:"driver_id"`
	PasswordResetLink *string      `json:"password_reset_link"`
	User              userResponse `json:"user"`
	Repaired          bool         `json:"repaired"`
	Message           string       `json:"message"`
}

type deprovisionRequest struct {
	AuthUserID string `json:"auth_user_id"`
	DriverID   string `json:"driver_id"`
}

type deprovisionResponse struct {
	Success               bool   `json:"success"`
	AuthUserID            string `json:"auth_user_id"`
	IdentityAlreadyAbsent bool   `json:"identity_already_absent"`
	Message               string `json:"message"`
}

// HandleProvision creates or repairs a driver account.
func (h *Handler) HandleProvision(c *gin.Context) {
	var req provisionRequest
	if err := bindJSON(c, &req); err != nil {
		h.logger.Warn("provision: invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body", Kind: errInvalidBody})
		return
	}

	res, err := h.provisioner.Provision(c.Request.Context(), service.ProvisionInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Phone:         req.Phone,
		LicenseNumber: req.LicenseNumber,
		Company:       req.Company,
		Vehicle:       req.Vehicle,
		Registration:  req.Registration,
	})
	if err != nil {
		h.fail(c, "provision", err)
		return
	}

	out := provisionResponse{
		Success:    true,
		AuthUserID: res.IdentityID,
		DriverID:   res.ProfileID,
		User:       userResponse{ID: res.IdentityID, Email: res.Email},
		Repaired:   res.Repaired,
		Message:    "Driver auth user created successfully",
	}
	if res.CredentialLink != "" {
		link := res.CredentialLink
		out.PasswordResetLink = &link
	}
	c.JSON(http.StatusOK, out)
}

// HandleDeprovision removes a driver's profile and identity.
func (h *Handler) HandleDeprovision(c *gin.Context) {
	var req deprovisionRequest
	if err := bindJSON(c, &req); err != nil {
		h.logger.Warn("deprovision: invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body", Kind: errInvalidBody})
		return
	}

	res, err := h.deprovisioner.Deprovision(c.Request.Context(), service.DeprovisionInput{
		IdentityID: req.AuthUserID,
		ProfileID:  req.DriverID,
	})
	if err != nil {
		h.fail(c, "deprovision", err)
		return
	}
	c.JSON(http.StatusOK, deprovisionResponse{
		Success:               true,
		AuthUserID:            res.IdentityID,
		IdentityAlreadyAbsent: res.IdentityAlreadyAbsent,
		Message:               "Driver and auth user deleted successfully",
	})
}

// bindJSON decodes the body into v. An empty body leaves v zero so the engine
// reports the missing fields.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status, body := toResponse(err)
	if status >= http.StatusInternalServerError {
		requestID, _ := middleware.GetRequestID(c.Request.Context())
		h.logger.Error(op+" failed", "kind", body.Kind, "request_id", requestID, "error", err)
		if h.tracker != nil {
			h.tracker.Capture(op, err, map[string]string{"kind": body.Kind, "stage": body.Stage, "request_id": requestID})
		}
	}
	c.JSON(status, body)
}
