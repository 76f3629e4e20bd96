// Package config loads the server configuration: a YAML file merged over
// compiled-in defaults, validated before anything starts. Files state only
// what they change; Default() alone is a working development setup (bolt
// store, plain HTTP, no raft). Runtime behavior knobs (saga_enabled,
// multicloud_deploy_enabled, saga_timeout_seconds) are not here; those
// live in the store and are editable through the admin API.
package config
