// Package config defines the format-agnostic configuration model for the
// event host, along with the Loader interface that format-specific packages
// (hclconfig, yamlconfig) implement.
//
// Configuration is layered: files first (merged in the order given), then
// EVENTHOST_* environment variables (optionally seeded from a .env file),
// then command-line flags applied by the cli package.
package config
