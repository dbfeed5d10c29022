// internal/security/permissions.go
package security

import (
	"fmt"
	"os"
)

// CheckManifestPermissions reports an error when the hook manifest is
// writable by anyone other than its owner. Every command in the
// manifest runs through the shell, so a loose mode turns the file into
// a privilege escalation path. The caller decides whether to warn or
// refuse; a missing manifest is not this function's concern.
func CheckManifestPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking manifest permissions: %w", err)
	}

	mode := info.Mode().Perm()
	if mode&0o002 != 0 {
		return fmt.Errorf("manifest %s is world-writable (mode %04o)", path, mode)
	}
	if mode&0o020 != 0 {
		return fmt.Errorf("manifest %s is group-writable (mode %04o)", path, mode)
	}
	return nil
}
