// Package llms provides unified support for interacting with Language Models
// from different providers.
//
// Each subpackage implements the Model interface for one provider.
// The agent loop only depends on the types declared here, so providers
// can be swapped through configuration.
package llms
