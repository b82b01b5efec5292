// Package domain defines the core business entities for arbiter.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Task: A pending invocation keyed by an opaque TaskID
//   - ArbitrageState: The persistent state of one engine instance
//   - Event: A notification of scheduler or engine activity
//   - Fixed-point helpers for prices, ratios and constant-product quotes
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend
// on domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, shopspring/decimal for amount text
//   - Cannot Import: Any internal/ package
package domain
