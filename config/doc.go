// Package config loads and validates the nodewatcher daemon configuration.
//
// Configuration lives in layered JSON files. Later layers override earlier
// ones key by key: a layer only changes what it mentions, nested sections
// merge recursively. NODEWATCHER_* environment variables apply on top of
// the merged result, which makes container deployments pleasant.
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Duration fields accept Go duration strings in the JSON files
// ("interval": "5m"). SafeConfig wraps a Config for concurrent readers
// with atomic swap-on-update semantics.
package config
