// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	reflector "github.com/alecthomas/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "recovery.schema.json"

var durationType = reflect.TypeOf(time.Duration(0))

// Schema describes the configuration file. No field is required, since
// anything left out keeps its default; unknown fields are rejected.
func Schema() *reflector.Schema {
	r := &reflector.Reflector{
		RequiredFromJSONSchemaTags: true,
		PreferYAMLSchema:           true,
		TypeMapper: func(t reflect.Type) *reflector.Type {
			if t == durationType {
				return &reflector.Type{Type: "string", Description: "duration such as 250ms or 2s"}
			}
			return nil
		},
	}
	return r.Reflect(&Config{})
}

var compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

func compiledSchema() (*jsonschema.Schema, error) {
	compiled.once.Do(func() {
		data, err := json.Marshal(Schema())
		if err != nil {
			compiled.err = err
			return
		}
		c := jsonschema.NewCompiler()
		if err = c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
			compiled.err = err
			return
		}
		compiled.schema, compiled.err = c.Compile(schemaURL)
	})
	return compiled.schema, compiled.err
}

// ValidateDocument checks a YAML configuration document against Schema. An
// empty document is valid.
func ValidateDocument(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting to json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(j))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return sch.Validate(v)
}
