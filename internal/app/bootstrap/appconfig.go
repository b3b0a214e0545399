// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (HTTP ports, TLS, logging level, body limits);
// AppConfig is everything specific to forumlink: where the membership store
// lives, how to reach the forum, and the defaults for the chat commands.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Forum connection configuration. All three are required: the service
	// cannot validate bindings or post without them.
	FlarumBaseURL       string // Forum base URL (e.g., https://forum.example.com)
	FlarumAPIToken      string // Shared master API token
	FlarumServiceUserID string // Forum user id of the service account used for unbound members

	// Chat command behavior
	InactiveDays int // Default day window for the inactivity report

	// Webhook authentication. When set, command requests must carry
	// "Authorization: Bearer <token>"; empty disables the check (dev only).
	WebhookToken string
}
