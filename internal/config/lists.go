package config

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/rileyhilliard/scatter/internal/errors"
	"github.com/spf13/afero"
)

// ReadCredentialList reads a username or password list: one value per line,
// surrounding whitespace trimmed, blank lines skipped, file order kept.
// There is no comment syntax: a password may legitimately start with #.
// The path is expanded first.
func ReadCredentialList(fs afero.Fs, path string) ([]string, error) {
	path = ExpandPath(path)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read credential list "+path,
			"Check the path passed to --username-file / --password-file.")
	}

	return ParseCredentialList(data), nil
}

// ParseCredentialList splits list file content into values.
func ParseCredentialList(data []byte) []string {
	// Drop a UTF-8 byte order mark written by some editors.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var values []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values = append(values, line)
	}
	return values
}

// ReadCommandFile returns the command text stored at path, unchanged.
func ReadCommandFile(fs afero.Fs, path string) (string, error) {
	path = ExpandPath(path)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read command file "+path,
			"Check the path passed to --command-file.")
	}
	return string(data), nil
}
