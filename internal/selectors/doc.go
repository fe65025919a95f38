// Package selectors contains the Selector implementations that vote in a
// council: keyword and readability heuristics, prompt length, a zero-shot
// topic classifier and a small local model.
//
// All selectors resolve concrete model identifiers through a
// config.RoutingTable so deployments can remap tiers and topics without code
// changes.
package selectors
