// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Persistence code runs off the interactive path and fails in bursts, so the
// package also offers Throttled, which rate limits repeated entries per key.
//
// Example Usage:
//
//	logger := logging.FromLevel("info", false)
//	logger.Info("Archive written", zap.Int("tabs", 12))
//
//	throttled := logging.NewThrottled(logger.Component("assets"), 0)
//	throttled.Warn("asset.put", "Screenshot write failed", zap.Error(err))
package logging
