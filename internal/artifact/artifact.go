// Package artifact writes a finished compile's output to its destination
// path atomically, per SPEC_FULL.md §4.6: a temp file in the same
// directory followed by a rename, so a reader (the host) never observes a
// partially written artifact, even though the host -- not the worker --
// owns long-term durability and any further renaming of the published
// file.
package artifact

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// Write atomically publishes data at dest, overwriting anything already
// there. Permissions match what os.WriteFile would have used for a
// regular, non-executable artifact file.
func Write(dest string, data []byte) error {
	if err := renameio.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", dest, err)
	}
	return nil
}
