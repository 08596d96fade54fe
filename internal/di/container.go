// Package di provides dependency injection configuration for the ABR server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/di/providers"
	"github.com/audiobookrequest/abr-server/internal/logger"
	"github.com/audiobookrequest/abr-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// External clients
	do.Provide(injector, providers.ProvideAudibleClient)
	do.Provide(injector, providers.ProvideProwlarrClient)
	do.Provide(injector, providers.ProvideGoogleBooksClient)

	// Business services
	do.Provide(injector, providers.ProvideVerifier)
	do.Provide(injector, providers.ProvideUpgradeService)
	do.Provide(injector, providers.ProvideEnrichmentService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideRequestService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services.
// This triggers lazy initialization of the full dependency graph.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	_ = do.MustInvoke[*service.UpgradeService](injector)
	_ = do.MustInvoke[*service.EnrichmentService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.RequestService](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
