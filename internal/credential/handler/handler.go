package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"iam/internal/credential/models"
	"iam/internal/credential/providers"
	"iam/internal/credential/tracer"
	dErrors "iam/pkg/domain-errors"
	"iam/pkg/platform/httputil"
	"iam/pkg/requestcontext"
	"iam/pkg/validation"
)

// CredentialService is the subset of the verification service used by handlers.
type CredentialService interface {
	Verify(ctx context.Context, payload *providers.RequestPayload) (*models.VerificationResult, error)
	Providers() []string
	Stamps(ctx context.Context, address string) ([]*models.Stamp, error)
	Stamp(ctx context.Context, hash string) (*models.Stamp, error)
}

// Handler serves the credential verification endpoints.
type Handler struct {
	service CredentialService
	logger  *slog.Logger
}

func New(service CredentialService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/verify", h.HandleVerify)
	r.Get("/credentials/providers", h.HandleProviders)
	r.Get("/credentials/stamps", h.HandleListStamps)
	r.Get("/credentials/stamps/{hash}", h.HandleGetStamp)
}

// VerifyRequest is the request body for credential verification.
type VerifyRequest struct {
	providers.RequestPayload
}

func (r *VerifyRequest) Normalize() {
	r.Type = strings.TrimSpace(r.Type)
	r.Address = strings.TrimSpace(r.Address)
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(&r.RequestPayload)
}

// StampResponse is the public view of an issued stamp.
type StampResponse struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider"`
	Address   string            `json:"address"`
	Hash      string            `json:"hash"`
	Record    map[string]string `json:"record"`
	IssuedAt  string            `json:"issued_at"`
	ExpiresAt string            `json:"expires_at"`
}

// VerifyResponse flattens the outcome into {"valid","record"} or {"valid","error"}.
type VerifyResponse struct {
	Valid  bool              `json:"valid"`
	Record map[string]string `json:"record,omitempty"`
	Error  []string          `json:"error,omitempty"`
	Stamp  *StampResponse    `json:"stamp,omitempty"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type StampsResponse struct {
	Address string           `json:"address"`
	Stamps  []*StampResponse `json:"stamps"`
}

// HandleVerify handles POST /credentials/verify.
// An Invalid outcome is still a 200: the request was served, the credential was not accepted.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.Verify(ctx, &req.RequestPayload)
	if err != nil {
		h.logger.ErrorContext(ctx, "credential verification failed",
			"request_id", requestID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential verified",
		"request_id", requestID,
		"type", req.Type,
		"address_hash", tracer.HashAddress(req.Address),
		"valid", result.Outcome.IsValid(),
		"category", string(result.Outcome.Category()),
	)

	resp := VerifyResponse{
		Valid:  result.Outcome.IsValid(),
		Record: result.Outcome.Record(),
		Error:  result.Outcome.Errors(),
	}
	if result.Stamp != nil {
		resp.Stamp = toStampResponse(result.Stamp)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleProviders handles GET /credentials/providers.
func (h *Handler) HandleProviders(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ProvidersResponse{Providers: h.service.Providers()})
}

// HandleListStamps handles GET /credentials/stamps?address=0x...
func (h *Handler) HandleListStamps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := strings.TrimSpace(r.URL.Query().Get("address"))

	stamps, err := h.service.Stamps(ctx, address)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list stamps",
			"request_id", requestcontext.RequestID(ctx),
			"address_hash", tracer.HashAddress(address),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := StampsResponse{
		Address: strings.ToLower(address),
		Stamps:  make([]*StampResponse, 0, len(stamps)),
	}
	for _, st := range stamps {
		resp.Stamps = append(resp.Stamps, toStampResponse(st))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetStamp handles GET /credentials/stamps/{hash}. Hashes are base64 and
// must be path-escaped by the client.
func (h *Handler) HandleGetStamp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, err := url.PathUnescape(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid stamp hash"))
		return
	}
	stamp, err := h.service.Stamp(ctx, hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStampResponse(stamp))
}

func toStampResponse(st *models.Stamp) *StampResponse {
	return &StampResponse{
		ID:        st.ID.String(),
		Provider:  st.Provider,
		Address:   st.Address,
		Hash:      st.Hash,
		Record:    st.Record,
		IssuedAt:  st.IssuedAt.Format(time.RFC3339),
		ExpiresAt: st.ExpiresAt.Format(time.RFC3339),
	}
}
