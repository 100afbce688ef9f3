// Package notifications delivers completion notices to task owners.
//
// The default implementation sends mail over implicit-TLS SMTP using the
// credentials configured in config.toml and degrades to a no-op when mail
// is disabled. Worker code depends only on the Service interface, so
// alternative transports slot in without touching the pipeline.
package notifications
