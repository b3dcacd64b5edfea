// Package domain defines the MCP tools for running and browsing battle
// simulations. Each tool pairs a schema constructor with a typed handler.
package domain
