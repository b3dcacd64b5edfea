// Package service wires the simulation tools to an MCP server and runs it
// over stdio.
package service
