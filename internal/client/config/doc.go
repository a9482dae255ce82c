// Package config loads runtime configuration for the GophChat client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected via -c or -config.
//  3. Environment: a .env file in the working directory, then GOPHCHAT_*
//     variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   relay HTTP base URL
//	-g string   relay gRPC health address (host:port)
//	-i int      online status check interval (seconds)
//	-p int      history page size
//	-b string   cache backend: sqlite or pebble
//	-d string   cache path (SQLite file or Pebble directory)
//	-l string   log level: debug, info, warn, error
//	-ui string  presentation: repl or tui
//
// # File schema
//
// Durations use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "cache_backend": "sqlite",
//	  "page_size": 15,
//	  "reconnect_max": "30s"
//	}
//
// Files ending in .yaml or .yml are decoded with the same keys.
package config
