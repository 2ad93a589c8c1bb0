// internal/importer/template.go
package importer

import (
	"fmt"
	"io"
	"os"

	"github.com/piaxis/inventory-sync/internal/core/domain"
)

// Template returns the delta CSV template: the schema header plus
// example rows an operator can edit in place.
func Template() []byte {
	return domain.TemplateCSV()
}

// WriteTemplate writes the delta CSV template to the given path.
func WriteTemplate(path string) error {
	if err := os.WriteFile(path, Template(), 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// CopyTemplate streams the template to a writer, for stdout use.
func CopyTemplate(w io.Writer) error {
	_, err := w.Write(Template())
	return err
}
