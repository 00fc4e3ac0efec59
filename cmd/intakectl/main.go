// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the optional intakectl.yaml configuration.
type Config struct {
	// BankPath is the default question bank file. The --bank flag
	// overrides it.
	BankPath string `yaml:"bank_path"`

	// LogDir enables file logging for CLI runs.
	LogDir string `yaml:"log_dir"`
}

var config Config

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// intakectl.yaml is optional: flags and defaults cover the
		// common case of pointing the tool at a bank file directly.
		configPath := "intakectl.yaml"
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return
		}
		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing intakectl.yaml: %v", err)
		}
	}
}
