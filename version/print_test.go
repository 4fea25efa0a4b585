package version

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	require.Equal(t, Version, String())
}

func TestFprintVersion(t *testing.T) {
	var buf bytes.Buffer
	FprintVersion(&buf)
	require.Equal(t, filepath.Base(os.Args[0])+" "+Package+" "+Version+"\n", buf.String())
}

func TestFprintVersion_Revision(t *testing.T) {
	bkp := Revision
	Revision = "abc123"
	defer func() { Revision = bkp }()

	require.Equal(t, Version+" abc123", String())

	var buf bytes.Buffer
	FprintVersion(&buf)
	require.Equal(t, filepath.Base(os.Args[0])+" "+Package+" "+Version+" abc123\n", buf.String())
}
