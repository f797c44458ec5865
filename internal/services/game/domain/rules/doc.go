// Package rules declares the card-placement exercises as immutable
// configurations: the zones a board has, their capacity bounds, and the
// cross-zone constraints the engine enforces.
//
// Configurations carry no behavior beyond lookup and structural export. The
// Registry is the single place a rule slug is resolved to a configuration;
// state initialization, the engine, and every transport go through it.
package rules
