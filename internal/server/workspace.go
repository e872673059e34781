package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"creatordesk/internal/config"
	"creatordesk/internal/domain"
	"creatordesk/internal/repo"
	"creatordesk/internal/secrets"
)

const minKeyLength = 8

func registerCredentials(api huma.API, s *server) {
	huma.Register(api, huma.Operation{
		OperationID: "get-credentials",
		Method:      http.MethodGet,
		Path:        "/credentials",
		Summary:     "Model provider key status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CredentialStatus `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cred, err := s.engine.Repo.GetCredential(ctx, scope.WorkspaceID)
		status := CredentialStatus{}
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return nil, s.handleError(err)
		default:
			status = credentialStatus(cred)
		}
		return &struct {
			Body CredentialStatus `json:"body"`
		}{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-credentials",
		Method:      http.MethodPut,
		Path:        "/credentials",
		Summary:     "Save the workspace model provider key",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body SetCredentialRequest
	}) (*struct {
		Body CredentialStatus `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		provider := strings.TrimSpace(input.Body.Provider)
		if !config.ValidProvider(provider) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "provider must be one of: "+strings.Join(config.Providers, ", "), nil)
		}
		key := strings.TrimSpace(input.Body.APIKey)
		if len(key) < minKeyLength {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "apiKey is missing or too short", nil)
		}
		sealed, err := s.cfg.Sealer.Seal(scope.WorkspaceID, key)
		if err != nil {
			if errors.Is(err, secrets.ErrNoPassphrase) {
				s.log.Error("credentials cannot be stored: secrets passphrase not configured")
			} else {
				s.log.Error("seal credential", zap.Error(err))
			}
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "the key could not be stored", nil)
		}
		cred := domain.Credential{
			WorkspaceID: scope.WorkspaceID,
			Provider:    provider,
			SealedKey:   sealed,
			Hint:        secrets.Hint(key),
			UpdatedAt:   domain.FormatTime(s.now()),
		}
		if err := s.engine.Repo.UpsertCredential(ctx, cred); err != nil {
			return nil, s.handleError(err)
		}
		s.log.Info("credential saved", zap.String("workspace_id", scope.WorkspaceID), zap.String("provider", provider))
		return &struct {
			Body CredentialStatus `json:"body"`
		}{Body: credentialStatus(cred)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-credentials",
		Method:        http.MethodDelete,
		Path:          "/credentials",
		Summary:       "Remove the workspace model provider key",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.Repo.DeleteCredential(ctx, scope.WorkspaceID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, s.handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProfile(api huma.API, s *server) {
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profile",
		Summary:     "Creator profile",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.CreatorProfile `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := s.engine.Repo.GetProfile(ctx, scope.WorkspaceID)
		if errors.Is(err, repo.ErrNotFound) {
			p, err = domain.CreatorProfile{Platforms: []domain.PlatformStat{}}, nil
		}
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.CreatorProfile `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-profile",
		Method:      http.MethodPut,
		Path:        "/profile",
		Summary:     "Replace the creator profile",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ProfileRequest
	}) (*struct {
		Body domain.CreatorProfile `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.DisplayName) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "displayName is required", nil)
		}
		if err := s.engine.Repo.SaveProfile(ctx, scope.WorkspaceID, profileFromRequest(input.Body)); err != nil {
			return nil, s.handleError(err)
		}
		p, err := s.engine.Repo.GetProfile(ctx, scope.WorkspaceID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.CreatorProfile `json:"body"`
		}{Body: p}, nil
	})
}

func registerActivities(api huma.API, s *server) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List recent activities",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type" enum:"brand_created,stage_changed,email_drafted,campaign_created"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedActivities `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursor int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursor = parsed
		}
		items, err := s.engine.Repo.ListActivities(ctx, scope.WorkspaceID, repo.ActivityFilters{
			Type:   input.Type,
			Cursor: cursor,
			Limit:  limit + 1,
		})
		if err != nil {
			return nil, s.handleError(err)
		}
		resp := paginatedActivities{Items: []domain.Activity{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].Seq, 10)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedActivities `json:"body"`
		}{Body: resp}, nil
	})
}
