package httpx

import (
	"path/filepath"

	"golang.org/x/crypto/acme/autocert"

	"github.com/glimlang/glimlang-recorder-dev/pkg/os"
)

type TLS struct {
	CertManager *autocert.Manager
}

// NewTLSConfig sets up an autocert manager with its certificate cache
// in the per-user app data folder.
func NewTLSConfig(host string) *TLS {
	cache := "certs"
	if dir, err := os.AppDataDir("glim-recorder"); err == nil {
		cache = filepath.Join(dir, "certs")
	}
	t := TLS{CertManager: &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(cache),
	}}
	if host != "" {
		t.CertManager.HostPolicy = autocert.HostWhitelist(host)
	}
	return &t
}
