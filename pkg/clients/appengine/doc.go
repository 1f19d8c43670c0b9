// Package appengine implements the application-engine REST client used by the
// component processors and the usage report.
//
// Every call runs inside a circuit breaker and is recorded with
// telemetry.RecordClientOperation. Creates are POSTs that fall back to a PUT
// when the engine answers 409, so re-running a create is harmless. Deletes
// treat 404 as success.
//
// Usage:
//
//	client, err := appengine.NewClient(appengine.Config{
//		BaseURL: "http://engine:8080/entando-app",
//		Token:   token,
//	})
//	if err != nil {
//		return err
//	}
//	registry, err := processors.DefaultRegistry(client, cluster)
//	if err != nil {
//		return err
//	}
//	scheduler := engine.NewScheduler(store, opener, registry, engine.WithUsageClient(client))
package appengine
