// Command retrievalctl drives the federated retrieval engine from the
// command line: run a search, trigger a centroid rebuild, invalidate a
// stale centroid, or list known tags. Grounded on the teacher's
// cmd/amanmcp entrypoint (thin main that delegates to cmd.Execute).
package main

import (
	"fmt"
	"os"

	"github.com/aman-cerp/federated-retrieval/cmd/retrievalctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
