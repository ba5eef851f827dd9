// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"
)

func Example() {
	defaults := strings.NewReader(`logging:
  insertIdHashAlgorithm: sha1
`)
	overrides := Map{
		"logging": map[string]any{
			"insertIdHashAlgorithm": "sha256",
		},
	}

	m, err := Read(FromYaml(defaults), overrides)
	if err != nil {
		fmt.Println(err)
		return
	}

	var cfg struct {
		Logging struct {
			InsertIDHashAlgorithm string `config:"insertIdHashAlgorithm"`
		} `config:"logging"`
	}
	err = m.Unmarshal(&cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(cfg.Logging.InsertIDHashAlgorithm)
	// Output: sha256
}
