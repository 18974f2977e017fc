// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Manifest sections mutated on install and uninstall.
const (
	SectionDependencies    = "dependencies"
	SectionDevDependencies = "devDependencies"
)

// Doc is a full manifest document held for mutation. Fields the installer
// does not understand are carried through writes untouched. Dependency
// sections are re-emitted with sorted keys and two-space indentation.
type Doc struct {
	fields map[string]interface{}
}

// NewDoc returns an empty document.
func NewDoc() *Doc {
	return &Doc{fields: make(map[string]interface{})}
}

// LoadDoc reads the document at path. A missing file yields a nil document
// and an os.IsNotExist-able error for callers that care.
func LoadDoc(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrapf(err, "cannot parse manifest %s", path)
	}
	return &Doc{fields: fields}, nil
}

// Section returns a dependency section as name -> value, nil when absent or
// not an object.
func (d *Doc) Section(section string) map[string]string {
	obj, ok := d.fields[section].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Set records name -> value in the given dependency section, creating the
// section on demand.
func (d *Doc) Set(section, name, value string) {
	obj, ok := d.fields[section].(map[string]interface{})
	if !ok {
		obj = make(map[string]interface{})
		d.fields[section] = obj
	}
	obj[name] = value
}

// Remove deletes name from both dependency sections. It reports whether any
// entry was removed.
func (d *Doc) Remove(name string) bool {
	removed := false
	for _, section := range []string{SectionDependencies, SectionDevDependencies} {
		if obj, ok := d.fields[section].(map[string]interface{}); ok {
			if _, has := obj[name]; has {
				delete(obj, name)
				removed = true
			}
		}
	}
	return removed
}

// Has reports whether name is present in the given section.
func (d *Doc) Has(section, name string) bool {
	obj, ok := d.fields[section].(map[string]interface{})
	if !ok {
		return false
	}
	_, has := obj[name]
	return has
}

// Bytes renders the document. Object keys come out sorted, so rendering is
// idempotent. HTML escaping is off; ranges like ">=1.2.0 <2.0.0" must
// round-trip readably.
func (d *Doc) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.fields); err != nil {
		return nil, errors.Wrap(err, "cannot encode manifest")
	}
	return buf.Bytes(), nil
}

// Write renders the document over path.
func (d *Doc) Write(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0666), "cannot write manifest %s", path)
}
