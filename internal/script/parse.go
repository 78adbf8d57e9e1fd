/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks documents that fail schema validation.
var ErrInvalid = errors.New("invalid script")

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiled() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Schema returns the JSON schema scripts are validated against.
func Schema() []byte { return append([]byte(nil), schemaJSON...) }

// Parse decodes a YAML or JSON script and validates it. Validation failures
// wrap ErrInvalid and list every violation.
func Parse(data []byte) (Script, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Script{}, &Error{Message: "parse script", Err: err}
	}
	if generic == nil {
		return Script{}, &Error{Message: "empty script", Err: ErrInvalid}
	}
	// validation and decoding both go through the JSON form
	doc, err := json.Marshal(generic)
	if err != nil {
		return Script{}, &Error{Message: "script is not representable as JSON", Err: err}
	}
	if err := Validate(doc); err != nil {
		return Script{}, err
	}
	var s Script
	if err := json.Unmarshal(doc, &s); err != nil {
		return Script{}, &Error{Message: "decode script", Err: err}
	}
	return s, nil
}

// Validate checks a JSON document against the script schema.
func Validate(doc []byte) error {
	sc, err := compiled()
	if err != nil {
		return fmt.Errorf("compile script schema: %w", err)
	}
	res, err := sc.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &Error{Message: "validate script", Err: err}
	}
	if res.Valid() {
		return nil
	}
	var b strings.Builder
	for i, e := range res.Errors() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.String())
	}
	return &Error{Message: b.String(), Err: ErrInvalid}
}
