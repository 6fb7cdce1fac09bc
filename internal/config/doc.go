// Package config loads and watches the gridwatch configuration file
// (config.yaml).
//
// Top-level types:
//   - Config — name, secret_key / secret_key_env, poll_interval,
//     probe_timeout, connectivity_check_url, server, client, announce,
//     journal, peers []
//   - PeerConfig — name, address, notify_handle
//   - AnnounceConfig — mode (telegram|slack|webhook|log) plus per-mode
//     settings; Secret(), Token() and URL() resolve secrets from
//     environment variables so tokens never sit in the file
//
// Load(path) reads the YAML file, applies defaults (10s poll, 5s probe
// timeout, :7070 listen, log announce mode), then validates required
// fields, enums, the probe_timeout < poll_interval ordering and the peer
// list. The loaded config is immutable for the process lifetime.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes; since
// nothing is hot-applied, the caller's onChange normally just records
// that a restart is needed. The rename→create pattern of atomic-save
// editors is handled by re-adding the watch after each reload.
package config
