package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiobookrequest/abr-server/internal/domain"
)

func (s *Server) registerRequestRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createRequest",
		Method:      http.MethodPost,
		Path:        "/api/v1/requests/{asin}",
		Summary:     "Request a book",
		Description: "Records a user's request for a book by ASIN",
		Tags:        []string{"Requests"},
	}, s.handleCreateRequest)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteRequest",
		Method:        http.MethodDelete,
		Path:          "/api/v1/requests/{asin}",
		Summary:       "Withdraw a request",
		Description:   "Removes one user's request for a book",
		Tags:          []string{"Requests"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteRequest)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRequests",
		Method:      http.MethodGet,
		Path:        "/api/v1/requests",
		Summary:     "List requested books",
		Description: "Returns the wishlist: every requested book with its requesters",
		Tags:        []string{"Requests"},
	}, s.handleListRequests)
}

// === DTOs ===

// CreateRequestInput identifies the book and the requesting user.
type CreateRequestInput struct {
	ASIN string `path:"asin" maxLength:"40" doc:"Book ASIN"`
	Body struct {
		Username string `json:"username" required:"true" minLength:"1" maxLength:"100" doc:"Requesting user"`
	}
}

// CreateRequestOutput wraps the created request for Huma.
type CreateRequestOutput struct {
	Body domain.Request
}

// DeleteRequestInput identifies the request to withdraw.
type DeleteRequestInput struct {
	ASIN     string `path:"asin" maxLength:"40" doc:"Book ASIN"`
	Username string `query:"username" required:"true" minLength:"1" maxLength:"100" doc:"Requesting user"`
}

// WishlistOutput contains the wishlist with summary counts.
type WishlistOutput struct {
	Body struct {
		Entries []domain.WishlistEntry `json:"entries" doc:"Requested books with requesters"`
		Counts  *domain.WishlistCounts `json:"counts" doc:"Totals by download state"`
	}
}

// === Handlers ===

func (s *Server) handleCreateRequest(ctx context.Context, input *CreateRequestInput) (*CreateRequestOutput, error) {
	req, err := s.services.Request.Create(ctx, input.ASIN, input.Body.Username)
	if err != nil {
		return nil, err
	}
	return &CreateRequestOutput{Body: *req}, nil
}

func (s *Server) handleDeleteRequest(ctx context.Context, input *DeleteRequestInput) (*struct{}, error) {
	if err := s.services.Request.DeleteForUser(ctx, input.ASIN, input.Username); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListRequests(ctx context.Context, _ *struct{}) (*WishlistOutput, error) {
	entries, err := s.services.Request.Wishlist(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.services.Request.WishlistCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := &WishlistOutput{}
	out.Body.Entries = entries
	out.Body.Counts = counts
	return out, nil
}
