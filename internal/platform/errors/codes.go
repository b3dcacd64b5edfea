// Package errors provides structured error handling for the simulator surfaces.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Catalog errors
	CodeCatalogInvalid     Code = "CATALOG_INVALID"
	CodeCatalogUnknownItem Code = "CATALOG_UNKNOWN_ITEM"
	CodeCatalogUnknownBot  Code = "CATALOG_UNKNOWN_BOT"

	// Loadout errors
	CodeLoadoutNoWeapons       Code = "LOADOUT_NO_WEAPONS"
	CodeLoadoutMixedCombat     Code = "LOADOUT_MIXED_COMBAT"
	CodeLoadoutInvalidOption   Code = "LOADOUT_INVALID_OPTION"
	CodeLoadoutInvalidTrials   Code = "LOADOUT_INVALID_TRIALS"
	CodeLoadoutInvalidDefender Code = "LOADOUT_INVALID_DEFENDER"

	// Scenario errors
	CodeScenarioInvalid Code = "SCENARIO_INVALID"

	// Simulation errors
	CodeSimMaxVolleysExceeded Code = "SIM_MAX_VOLLEYS_EXCEEDED"
	CodeSimCancelled          Code = "SIM_CANCELLED"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeInvalidFilter Code = "INVALID_FILTER"
	CodeJobNotRunning Code = "JOB_NOT_RUNNING"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeCatalogInvalid,
		CodeLoadoutNoWeapons,
		CodeLoadoutMixedCombat,
		CodeLoadoutInvalidOption,
		CodeLoadoutInvalidTrials,
		CodeLoadoutInvalidDefender,
		CodeScenarioInvalid,
		CodeInvalidFilter:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeSimMaxVolleysExceeded,
		CodeJobNotRunning:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeCatalogUnknownItem,
		CodeCatalogUnknownBot:
		return codes.NotFound

	case CodeSimCancelled:
		return codes.Canceled

	default:
		return codes.Internal
	}
}
