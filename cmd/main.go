/*
Copyright 2025 Exportd Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/batchfile/exportd"
	"github.com/batchfile/exportd/config"
	"github.com/batchfile/exportd/database"
)

// Exportd represents the CLI application, encapsulating the root Cobra command.
type Exportd struct {
	cmd *cobra.Command
}

// exportdInstance holds the runtime service instance and its configuration,
// shared by all subcommands through the persistent pre-run hook.
type exportdInstance struct {
	exportd *exportd.Exportd
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service instance before
// running any command. The config path is read after flag parsing so
// --config is honored.
func preRun(app *exportdInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newExportd, err := setupExportd(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.exportd = newExportd
		app.cnf = cnf

		return nil
	}
}

// setupExportd connects the data source and builds the service instance,
// assigning this process its worker identity.
func setupExportd(cfg *config.Configuration) (*exportd.Exportd, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newExportd, err := exportd.NewExportd(db)
	if err != nil {
		return nil, fmt.Errorf("error creating exportd: %v", err)
	}
	return newExportd, nil
}

// NewCLI creates the command-line interface for the exportd application.
func NewCLI() *Exportd {
	var configFile string
	e := &exportdInstance{}

	var rootCmd = &cobra.Command{
		Use:   "exportd",
		Short: "Batch file export workers",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./exportd.json", "Configuration file for exportd")

	rootCmd.PersistentPreRunE = preRun(e, &configFile)

	rootCmd.AddCommand(workerCommands(e))
	rootCmd.AddCommand(migrateCommands(e))
	rootCmd.AddCommand(seedCommands(e))

	return &Exportd{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Exportd) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
