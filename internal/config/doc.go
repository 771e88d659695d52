// Package config defines configuration structures for the trickle CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (TRICKLE_ prefix)
//   - YAML configuration file
//
// # Example
//
//	url: https://example.com/releases/image.iso
//	output: s3://my-bucket?region=eu-west-1
//	chunk_size: 8MB
//	max_retries: 5
//	headers:
//	  X-Request-Source: trickle
//	retry:
//	  backoff: 2s
//	log:
//	  level: debug
//	  format: json
package config
