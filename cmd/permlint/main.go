// Command permlint fails the build when a source file references a
// permission key that is not declared in the registry.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"opencampus.org/internal/auth"
	"opencampus.org/internal/permlint"
)

func main() {
	log.SetFlags(0)
	root := flag.String("root", ".", "directory tree to scan")
	flag.Parse()

	report, err := permlint.Scan(*root, func(key string) bool {
		return auth.IsRegistered(auth.Permission(key))
	})
	if err != nil {
		log.Fatalf("permlint: %v", err)
	}

	if report.Clean() {
		fmt.Printf("permlint: %d files scanned, no unregistered permissions\n", report.FilesScanned)
		return
	}

	for _, site := range report.Unregistered {
		fmt.Fprintln(os.Stderr, site.String())
	}
	fmt.Fprintf(os.Stderr, "permlint: %d unregistered permission literal(s)\n", len(report.Unregistered))
	os.Exit(1)
}
