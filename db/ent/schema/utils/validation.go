package utils

import "fmt"

// EnumValidator returns a field validator accepting only the listed
// values. Used for status columns stored as plain strings.
func EnumValidator(allowed ...string) func(string) error {
	set := map[string]struct{}{}
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("value %q is not in the allowed set", s)
	}
}
