// posctl es la CLI de operación: migraciones, barridos y alta del primer admin.
package main

import (
	"os"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
