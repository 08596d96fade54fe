package api

import (
	"github.com/audiobookrequest/abr-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Search     *service.SearchService
	Request    *service.RequestService
	Enrichment *service.EnrichmentService
}
