package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration directory not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrTokenCache    = fmt.Errorf("token cache unavailable")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// Remote service errors
	ErrAPIRequest = fmt.Errorf("API request failed")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ExitCode maps an error returned to the process boundary onto an exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
