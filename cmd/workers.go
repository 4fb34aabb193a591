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
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/batchfile/exportd"
)

// workerCommands defines the "workers" command, the long-running mode of the
// application. It seeds business center priorities, starts the polling loop
// and blocks until the process receives SIGINT or SIGTERM. Shutdown waits
// for in-flight processing cycles; interrupted cycles are recovered by other
// workers through lock expiry.
func workerCommands(e *exportdInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start exportd workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := e.exportd.InitializePriorities(ctx); err != nil {
				log.Fatalf("could not seed business center priorities: %v", err)
			}

			worker, err := exportd.NewWorker(e.exportd)
			if err != nil {
				log.Fatalf("could not create worker: %v", err)
			}

			worker.Start(ctx)

			<-ctx.Done()
			logrus.Info("Shutdown signal received, draining active cycles")
			worker.Stop()
		},
	}

	return cmd
}
