// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	commandsfeature "github.com/dalemusser/forumlink/internal/app/features/commands"
	healthfeature "github.com/dalemusser/forumlink/internal/app/features/health"
	"github.com/dalemusser/forumlink/internal/app/flarum"
	"github.com/dalemusser/forumlink/internal/app/services/binding"
	"github.com/dalemusser/forumlink/internal/app/services/inactivity"
	"github.com/dalemusser/forumlink/internal/app/services/posting"
	membershipstore "github.com/dalemusser/forumlink/internal/app/store/memberships"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. forumlink wires the membership store and
// forum client into the three services, then mounts the command webhook and
// the health endpoint.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	store := membershipstore.New(deps.MongoDatabase)

	forumClient := flarum.NewClient(flarum.Config{
		BaseURL:       appCfg.FlarumBaseURL,
		APIToken:      appCfg.FlarumAPIToken,
		ServiceUserID: appCfg.FlarumServiceUserID,
	}, logger)

	bindingSvc := binding.New(store, forumClient, logger)
	inactivitySvc := inactivity.New(store, appCfg.InactiveDays, logger)
	postingSvc := posting.New(store, forumClient, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Chat command webhook
	commandsHandler := commandsfeature.NewHandler(bindingSvc, inactivitySvc, postingSvc, logger)
	r.Mount("/commands", commandsfeature.Routes(commandsHandler, appCfg.WebhookToken))

	return r, nil
}
