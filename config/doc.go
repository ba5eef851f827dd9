// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config reads layered configuration sources into a key value
// store and decodes the merged result into a typed struct.
//
// Sources are applied in order, so later sources override earlier ones:
//
//	m, err := config.Read(
//	    config.FromYaml(config.RenderTextTemplate(defaults, config.TemplateFunc("env", os.Getenv))),
//	    config.FromYaml(userFile),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg MyConfig
//	err = m.Unmarshal(&cfg)
//
// Struct fields are matched using the `config` tag.
package config
