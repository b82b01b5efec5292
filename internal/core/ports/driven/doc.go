// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Clock: Current step of the external discrete clock
//   - PriceFeed: Fixed-point price per token
//   - LiquidityPool: Constant-product reserves, quotes and swaps
//   - TaskStore: Pending task registry, nonce and firing history
//   - EngineStore: Arbitrage engine state persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - services fall back to a no-op:
//
//   - EventSink: Receives scheduler and engine events
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
