package sim

import "errors"

// Error kinds reported by the engine. Callers match them with errors.Is;
// every returned error wraps exactly one of these.
var (
	// ErrInvalidArgument covers negative time steps, malformed successor
	// probability vectors and lookups of unregistered subtypes.
	ErrInvalidArgument = errors.New("sim: invalid argument")

	// ErrDomain is returned by a growth law inverse evaluated at or above
	// the asymptotic length. Organs close to maturity hit it routinely.
	ErrDomain = errors.New("sim: growth law domain error")

	// ErrConsistency indicates a parameter set whose zones and internodes
	// do not fit into its maximal length.
	ErrConsistency = errors.New("sim: inconsistent parameter set")
)
