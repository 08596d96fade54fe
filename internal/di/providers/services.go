package providers

import (
	"github.com/samber/do/v2"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/logger"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
	"github.com/audiobookrequest/abr-server/internal/service"
)

func defaultRegion(cfg *config.Config) audible.Region {
	return audible.Region(cfg.Audible.DefaultRegion)
}

// ProvideVerifier provides the shared fuzzy match verdict cache.
func ProvideVerifier(i do.Injector) (*service.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return service.NewVerifier(cfg.Search.FuzzyMatchTTL), nil
}

// ProvideUpgradeService provides the provisional-record upgrade engine.
func ProvideUpgradeService(i do.Injector) (*service.UpgradeService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*audible.Client](i)
	v := do.MustInvoke[*service.Verifier](i)

	return service.NewUpgradeService(storeHandle.Store, catalog, v, cfg.Search, defaultRegion(cfg), log.Logger), nil
}

// ProvideEnrichmentService provides provisional book metadata enrichment.
func ProvideEnrichmentService(i do.Injector) (*service.EnrichmentService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[*googlebooks.Client](i)

	return service.NewEnrichmentService(storeHandle.Store, client, cfg.Enrichment, log.Logger), nil
}

// ProvideSearchService provides the search orchestrator.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*audible.Client](i)
	indexer := do.MustInvoke[*prowlarr.Client](i)
	enricher := do.MustInvoke[*service.EnrichmentService](i)
	upgrades := do.MustInvoke[*service.UpgradeService](i)
	v := do.MustInvoke[*service.Verifier](i)

	return service.NewSearchService(storeHandle.Store, catalog, indexer, enricher, upgrades, v, cfg.Search, defaultRegion(cfg), log.Logger), nil
}

// ProvideRequestService provides request management.
func ProvideRequestService(i do.Injector) (*service.RequestService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*audible.Client](i)

	return service.NewRequestService(storeHandle.Store, catalog, defaultRegion(cfg), log.Logger), nil
}
