package repository

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// readDocument unmarshals the whole YAML file at path into out. A missing
// file is reported via os.IsNotExist on the returned error.
func readDocument(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s", filepath.Base(path))
	}
	return nil
}

// writeDocument marshals doc and replaces the file at path atomically via a
// temp file and rename, so a crash mid-write never corrupts the document.
func writeDocument(path string, doc interface{}) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize %s", filepath.Base(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
