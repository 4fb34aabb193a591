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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize            = 1000
	DefaultLockTimeoutSeconds   = 300
	DefaultPollIntervalSeconds  = 5
	DefaultErrorBackoffSeconds  = 5
	DefaultMaxConcurrentMasters = 10
	DefaultOutputDirectory      = "./output"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"EXPORTD_DATA_SOURCE_DNS"`
}

// WorkerConfig tunes the claim/stream/finalize loop. All durations are
// whole seconds to match the row-level lease arithmetic in the store.
type WorkerConfig struct {
	BatchSize            int `json:"batch_size" envconfig:"EXPORTD_BATCH_SIZE"`
	LockTimeoutSeconds   int `json:"lock_timeout_seconds" envconfig:"EXPORTD_LOCK_TIMEOUT_SECONDS"`
	PollIntervalSeconds  int `json:"poll_interval_seconds" envconfig:"EXPORTD_POLL_INTERVAL_SECONDS"`
	ErrorBackoffSeconds  int `json:"error_backoff_seconds" envconfig:"EXPORTD_ERROR_BACKOFF_SECONDS"`
	MaxConcurrentMasters int `json:"max_concurrent_masters" envconfig:"EXPORTD_MAX_CONCURRENT_MASTERS"`
}

type OutputConfig struct {
	Directory string `json:"directory" envconfig:"EXPORTD_OUTPUT_DIRECTORY"`
}

type Configuration struct {
	ProjectName string           `json:"project_name" envconfig:"EXPORTD_PROJECT_NAME"`
	DataSource  DataSourceConfig `json:"data_source"`
	Worker      WorkerConfig     `json:"worker"`
	Output      OutputConfig     `json:"output"`

	// BusinessCenterPriorities seeds master_records.priority at startup.
	// It is never re-applied at claim time; the stored priority wins.
	BusinessCenterPriorities map[string]int `json:"business_center_priorities" envconfig:"EXPORTD_BUSINESS_CENTER_PRIORITIES"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("exportd", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called exportd.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Exportd Worker"
	}
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Worker.BatchSize == 0 {
		cnf.Worker.BatchSize = DefaultBatchSize
	}
	if cnf.Worker.LockTimeoutSeconds == 0 {
		cnf.Worker.LockTimeoutSeconds = DefaultLockTimeoutSeconds
	}
	if cnf.Worker.PollIntervalSeconds == 0 {
		cnf.Worker.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if cnf.Worker.MaxConcurrentMasters == 0 {
		cnf.Worker.MaxConcurrentMasters = DefaultMaxConcurrentMasters
	}
	if cnf.Worker.ErrorBackoffSeconds < DefaultErrorBackoffSeconds {
		log.Printf("Warning: error backoff below %ds floor, clamping", DefaultErrorBackoffSeconds)
		cnf.Worker.ErrorBackoffSeconds = DefaultErrorBackoffSeconds
	}
	if cnf.Output.Directory == "" {
		cnf.Output.Directory = DefaultOutputDirectory
	}
	cnf.Output.Directory = strings.TrimSpace(cnf.Output.Directory)

	return cnf.validate()
}

func (cnf *Configuration) validate() error {
	err := validation.ValidateStruct(&cnf.Worker,
		validation.Field(&cnf.Worker.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&cnf.Worker.LockTimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&cnf.Worker.PollIntervalSeconds, validation.Required, validation.Min(1)),
		validation.Field(&cnf.Worker.MaxConcurrentMasters, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return err
	}
	for code, priority := range cnf.BusinessCenterPriorities {
		if priority < 0 {
			log.Printf("Warning: negative priority for business center %s, ignoring", code)
			delete(cnf.BusinessCenterPriorities, code)
		}
	}
	return nil
}

// LockTimeout returns the abandoned-lock horizon as a duration.
func (cnf *Configuration) LockTimeout() time.Duration {
	return time.Duration(cnf.Worker.LockTimeoutSeconds) * time.Second
}

// PollInterval returns the idle sleep between claim attempts.
func (cnf *Configuration) PollInterval() time.Duration {
	return time.Duration(cnf.Worker.PollIntervalSeconds) * time.Second
}

// ErrorBackoff returns the sleep applied after an errored cycle.
func (cnf *Configuration) ErrorBackoff() time.Duration {
	return time.Duration(cnf.Worker.ErrorBackoffSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
