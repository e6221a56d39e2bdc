// Package tools defines the tool contract used by the agent:
// a Tool Adapter returns a normalized Result or a typed Failure,
// and the Registry resolves, validates and invokes tools by name.
//
// Unknown tools and malformed arguments are rejected by the Registry
// before the adapter is called, so no network request is made for them.
package tools
