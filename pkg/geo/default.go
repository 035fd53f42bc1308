package geo

import (
	"embed"
	"sync"
)

//go:embed reference/manifest.yaml reference/departements.csv
var referenceFS embed.FS

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return LoadTableFS(referenceFS, "reference")
})

// Default returns the reference table compiled into the binary.
func Default() *Table {
	t, err := defaultTable()
	if err != nil {
		// The embedded files are part of the build; failing to parse them is a
		// programming error.
		panic("geo: embedded reference table: " + err.Error())
	}
	return t
}
