package os

import (
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func CheckCreateDir(path string) error {
	if !Exists(path) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// IsDirWritable probes the dir with a temp file since access bits alone
// lie on network shares and Windows.
func IsDirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".w_*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func ExpectTermination() chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{}, 1)
	go func() {
		<-signals
		done <- struct{}{}
	}()
	return done
}

func GetUserHome() (string, error) {
	me, err := user.Current()
	if err != nil {
		return "", err
	}
	return me.HomeDir, nil
}

// AppDataDir returns a per-user dir for downloaded tools and caches.
func AppDataDir(app string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		home, err2 := GetUserHome()
		if err2 != nil {
			return "", err
		}
		base = home
	}
	dir := filepath.Join(base, app)
	return dir, CheckCreateDir(dir)
}
