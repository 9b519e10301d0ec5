package storage

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// OracleClient uploads through an Oracle Object Storage
// pre-authenticated request URL, see:
// https://docs.oracle.com/en-us/iaas/Content/Object/Tasks/usingpreauthenticatedrequests.htm
type OracleClient struct {
	accessURL string
	client    *http.Client
	log       *logger.Logger
}

func NewOracleClient(accessURL string, log *logger.Logger) (*OracleClient, error) {
	if accessURL == "" {
		return nil, errors.New("pre-authenticated request was not specified")
	}
	return &OracleClient{
		accessURL: accessURL,
		client:    &http.Client{Timeout: 5 * time.Minute},
		log:       log,
	}, nil
}

func (s *OracleClient) Save(name string, srcFile string) error {
	if s == nil {
		return errors.New("cloud storage was not initialized")
	}

	dat, err := os.ReadFile(srcFile)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, s.accessURL+name, bytes.NewBuffer(dat))
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}

	dstMD5 := resp.Header.Get("Opc-Content-Md5")
	srcMD5 := base64.StdEncoding.EncodeToString(md5Hash(dat))
	if dstMD5 != srcMD5 {
		return fmt.Errorf("MD5 mismatch %v != %v", srcMD5, dstMD5)
	}
	s.log.Info().Msgf("uploaded %v (%d bytes)", name, len(dat))
	return nil
}

func md5Hash(data []byte) []byte {
	hash := md5.New()
	hash.Write(data)
	return hash.Sum(nil)
}
