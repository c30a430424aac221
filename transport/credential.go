package transport

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// loadSigner tries to interpret the credential as SSH private-key material.
// Inline PEM content is parsed directly; otherwise, if the credential names
// an existing file, its contents are parsed. A nil signer with ok == false
// means the credential should be treated as a password.
func loadSigner(credential string) (ssh.Signer, bool) {
	keyData := ""

	switch {
	case looksLikeKey(credential):
		keyData = credential
	case isExistingFile(credential):
		data, err := os.ReadFile(credential)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "loadSigner",
				"path":     credential,
				"error":    err.Error(),
			}).Warn("Credential names an existing file but it could not be read, treating as password")
			return nil, false
		}
		if !looksLikeKey(string(data)) {
			return nil, false
		}
		keyData = string(data)
	default:
		return nil, false
	}

	signer, err := ssh.ParsePrivateKey([]byte(keyData))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "loadSigner",
			"error":    err.Error(),
		}).Warn("Credential looks like key material but failed to parse, treating as password")
		return nil, false
	}

	return signer, true
}

// looksLikeKey reports whether the credential text is inline private-key
// material rather than a password or a path.
func looksLikeKey(credential string) bool {
	return strings.Contains(credential, "PRIVATE KEY-----")
}

// isExistingFile reports whether the credential resolves to a regular file.
func isExistingFile(path string) bool {
	if len(path) == 0 || len(path) > 4096 || strings.ContainsAny(path, "\n\r") {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
