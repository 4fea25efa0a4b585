package version

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// String returns the version, followed by the revision when the binary was built with one.
func String() string {
	if Revision == "" {
		return Version
	}
	return Version + " " + Revision
}

// FprintVersion writes "<binary> <package> <version> [<revision>]" and a newline to w, e.g.
//
// 	notifications github.com/rettinghaus/sentry v0.1.0
func FprintVersion(w io.Writer) {
	fmt.Fprintln(w, filepath.Base(os.Args[0]), Package, String())
}
