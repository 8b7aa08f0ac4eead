// Package jsonfile persists application data as whole JSON documents on
// disk, one file per collection. Every write rewrites the entire file; a
// per-file RWMutex serializes access within the process. There is no
// cross-process locking: between processes, the last writer wins.
package jsonfile

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
)

type DB struct {
	users    *collection
	subjects *collection
}

// Open prepares the data directory and seeds missing collection files with
// empty documents.
func Open(conf *core.Config) (*DB, error) {
	if err := os.MkdirAll(conf.DataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}

	db := &DB{
		users:    &collection{path: filepath.Join(conf.DataDir, "users.json")},
		subjects: &collection{path: filepath.Join(conf.DataDir, "subjects.json")},
	}
	if err := db.users.init(&usersDoc{Users: []userRecord{}}); err != nil {
		return nil, err
	}
	if err := db.subjects.init(&subjectsDoc{Subjects: []content.Subject{}}); err != nil {
		return nil, err
	}
	return db, nil
}

// collection is one JSON document on disk. Callers hold mu around
// load-mutate-save sequences.
type collection struct {
	mu   sync.RWMutex
	path string
}

func (c *collection) name() string {
	return filepath.Base(c.path)
}

func (c *collection) init(empty interface{}) error {
	if _, err := os.Stat(c.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "checking "+c.name())
	}
	return c.save(empty)
}

func (c *collection) load(dst interface{}) error {
	b, err := ioutil.ReadFile(c.path)
	if err != nil {
		return errors.Wrap(err, "reading "+c.name())
	}
	return errors.Wrap(json.Unmarshal(b, dst), "decoding "+c.name())
}

func (c *collection) save(src interface{}) error {
	b, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding "+c.name())
	}
	return errors.Wrap(ioutil.WriteFile(c.path, b, 0644), "writing "+c.name())
}
