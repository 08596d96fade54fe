package providers

import (
	"github.com/samber/do/v2"

	"github.com/audiobookrequest/abr-server/internal/config"
	"github.com/audiobookrequest/abr-server/internal/indexer/prowlarr"
	"github.com/audiobookrequest/abr-server/internal/logger"
	"github.com/audiobookrequest/abr-server/internal/metadata/audible"
	"github.com/audiobookrequest/abr-server/internal/metadata/googlebooks"
)

// ProvideAudibleClient provides the canonical catalog client.
func ProvideAudibleClient(i do.Injector) (*audible.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return audible.New(log.Logger), nil
}

// ProvideProwlarrClient provides the indexer aggregator client.
func ProvideProwlarrClient(i do.Injector) (*prowlarr.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := prowlarr.New(cfg.Prowlarr, log.Logger)
	if !client.Configured() {
		log.Warn("Indexer aggregator not configured; availability search disabled")
	}
	return client, nil
}

// ProvideGoogleBooksClient provides the enrichment metadata client.
func ProvideGoogleBooksClient(i do.Injector) (*googlebooks.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return googlebooks.NewClient(log.Logger), nil
}
