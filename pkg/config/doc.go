// Package config loads bundlekeeper's configuration.
//
// Values come from defaults, an optional YAML file and BUNDLEKEEPER_*
// environment variables, in increasing precedence. Nested keys map to
// variables by replacing dots with underscores, so engine.base_url is read
// from BUNDLEKEEPER_ENGINE_BASE_URL.
//
// Example file:
//
//	store:
//	  path: /var/lib/bundlekeeper/bundlekeeper.db
//	engine:
//	  base_url: http://quickstart:8080/entando-app
//	  timeout: 15s
//	cluster:
//	  enabled: true
//	  namespace: entando
//	  app_name: quickstart
//	jobs:
//	  lease_timeout: 10m
//	telemetry:
//	  logging:
//	    level: debug
package config
