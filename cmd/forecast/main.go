// forecast builds a payload from an assumption file and runs it against the
// calculation API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
