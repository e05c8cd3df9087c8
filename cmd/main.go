/*
Copyright 2025 Postline Authors.

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

	"github.com/postlinehq/postline"
	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/internal/notification"
)

// Postline represents the CLI application, encapsulating the root Cobra command.
type Postline struct {
	cmd *cobra.Command
}

// postlineInstance holds the running service and its configuration for the
// subcommands.
type postlineInstance struct {
	line *postline.Postline
	cnf  *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any
// subcommand runs.
func preRun(app *postlineInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("postline.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newLine, err := postline.NewPostline()
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.line = newLine
		app.cnf = cnf

		return nil
	}
}

// NewCLI creates the command-line interface for the Postline service.
func NewCLI() *Postline {
	var configFile string
	p := &postlineInstance{}

	var rootCmd = &cobra.Command{
		Use:   "postline",
		Short: "Dashboard companion service for scheduled social posts",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./postline.json", "Configuration file for postline")

	rootCmd.PersistentPreRunE = preRun(p)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands())
	rootCmd.AddCommand(configCommands())

	return &Postline{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur.
func (w Postline) executeCLI() {
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
