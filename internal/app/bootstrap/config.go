// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for forumlink.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, flarum_base_url, etc.
//   - Environment variables: FORUMLINK_MONGO_URI, FORUMLINK_FLARUM_BASE_URL, etc.
//   - Command-line flags: --mongo_uri, --flarum_base_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "forumlink", Desc: "MongoDB database name"},

	// Forum connection
	{Name: "flarum_base_url", Default: "", Desc: "Forum base URL (e.g., https://forum.example.com)"},
	{Name: "flarum_api_token", Default: "", Desc: "Forum master API token"},
	{Name: "flarum_service_user_id", Default: "", Desc: "Forum user id of the service account"},

	// Chat command behavior
	{Name: "inactive_days", Default: 30, Desc: "Default day window for the inactivity report"},

	// Webhook authentication
	{Name: "webhook_token", Default: "", Desc: "Bearer token the chat framework must send (blank disables the check)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have access
// to configuration before any backends or handlers are built.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FORUMLINK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		FlarumBaseURL:       appValues.String("flarum_base_url"),
		FlarumAPIToken:      appValues.String("flarum_api_token"),
		FlarumServiceUserID: appValues.String("flarum_service_user_id"),

		InactiveDays: appValues.Int("inactive_days"),

		WebhookToken: appValues.String("webhook_token"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The forum settings have no sensible defaults: without a base URL, token,
// and service account id the bind and post commands cannot work at all, so
// startup fails fast rather than limping into runtime errors.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.FlarumBaseURL == "" {
		return fmt.Errorf("flarum_base_url is required")
	}
	if appCfg.FlarumAPIToken == "" {
		return fmt.Errorf("flarum_api_token is required")
	}
	if appCfg.FlarumServiceUserID == "" {
		return fmt.Errorf("flarum_service_user_id is required")
	}
	if appCfg.InactiveDays <= 0 {
		return fmt.Errorf("inactive_days must be positive, got %d", appCfg.InactiveDays)
	}

	if appCfg.WebhookToken == "" {
		logger.Warn("webhook_token is blank; command endpoints are unauthenticated")
	}

	return nil
}
