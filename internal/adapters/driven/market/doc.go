// Package market provides in-process price feed and liquidity pool adapters.
//
// Oracle holds the latest fed price per token. Pool keeps constant-product
// reserves per token pair and settles swaps against them. Both are safe for
// concurrent use and are seeded by the simulate and run commands.
package market
