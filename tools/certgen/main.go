// Package main generates a self-signed server certificate and key under the
// "certs" directory, for use with TLS_CERT and TLS_KEY in development.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/SmartBookmarks/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs")
	validFor := flag.Duration("valid-for", 365*24*time.Hour, "certificate lifetime")
	flag.Parse()

	if err := run(*dir, splitHosts(*hosts), *validFor); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(dir string, hosts []string, validFor time.Duration) error {
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(hosts, validFor)
	if err != nil {
		return err
	}
	certPath, keyPath, err := certgen.WriteFiles(dir, certPEM, keyPEM)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Certificate written to %s, key to %s\n", certPath, keyPath)
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
