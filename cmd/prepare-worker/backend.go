package main

// passthroughBackend is the default Prevalidator/Compiler: it accepts every
// blob and "compiles" it by returning the blob unchanged. SPEC_FULL.md §4.5
// treats the actual PVF prevalidation/compilation logic as an external
// collaborator injected by the host integration; this stub lets the binary
// run standalone and gives integrators a single pair of methods to replace.
type passthroughBackend struct{}

func (passthroughBackend) Prevalidate(blob, executorParams []byte) error {
	return nil
}

func (passthroughBackend) Compile(blob, executorParams []byte) ([]byte, error) {
	artifact := make([]byte, len(blob))
	copy(artifact, blob)
	return artifact, nil
}
