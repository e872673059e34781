package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"creatordesk/internal/domain"
)

type conversationPath struct {
	ID string `path:"id"`
}

func registerConversations(api huma.API, s *server) {
	huma.Register(api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/conversations",
		Summary:     "List conversations, most recently updated first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body ConversationList `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.engine.Repo.ListConversations(ctx, scope.WorkspaceID, scope.UserID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body ConversationList `json:"body"`
		}{Body: ConversationList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        "/conversations/{id}",
		Summary:     "Get a conversation with its messages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *conversationPath) (*struct {
		Body domain.Conversation `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := s.engine.Repo.LoadConversation(ctx, scope.WorkspaceID, scope.UserID, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.Conversation `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-conversation",
		Method:      http.MethodPatch,
		Path:        "/conversations/{id}",
		Summary:     "Rename a conversation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body RenameConversationRequest
	}) (*struct {
		Body domain.Conversation `json:"body"`
	}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.Repo.RenameConversation(ctx, scope.WorkspaceID, scope.UserID, input.ID, input.Body.Title); err != nil {
			return nil, s.handleError(err)
		}
		c, err := s.engine.Repo.GetConversation(ctx, scope.WorkspaceID, scope.UserID, input.ID)
		if err != nil {
			return nil, s.handleError(err)
		}
		return &struct {
			Body domain.Conversation `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-conversation",
		Method:        http.MethodDelete,
		Path:          "/conversations/{id}",
		Summary:       "Delete a conversation and its messages",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *conversationPath) (*struct{}, error) {
		scope, authErr := scopeFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.engine.Repo.DeleteConversation(ctx, scope.WorkspaceID, scope.UserID, input.ID); err != nil {
			return nil, s.handleError(err)
		}
		return &struct{}{}, nil
	})
}
