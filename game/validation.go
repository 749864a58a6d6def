package game

import "regexp"

var (
	// validUsernameRE matches chosen names: 1-16 chars, starts with letter,
	// contains only letters, numbers, hyphens, or underscores.
	validUsernameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,15}$`)
	// validNodeIDRE matches mesh node ids, used as names by nodes that never picked one.
	validNodeIDRE = regexp.MustCompile(`^![0-9a-f]{8}$`)
)

// InvalidUsernameError is returned when a username fails validation.
type InvalidUsernameError struct{}

func (e InvalidUsernameError) Error() string {
	return "Invalid username. Must be a node id like !a1b2c3d4, or 1-16 characters that start with a letter and contain only letters, numbers, hyphens, or underscores."
}

func validateUsername(name string) error {
	if !validUsernameRE.MatchString(name) && !validNodeIDRE.MatchString(name) {
		return InvalidUsernameError{}
	}
	return nil
}
