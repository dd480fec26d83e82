/*
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

// Package pubsub wires the DataModel, codec, and preencode cache into a
// configuration-driven periodic publisher, with a StaticConfig/dynamic
// YAML-loaded writer group split.
package pubsub

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"

	"github.com/opcua-pubsub/uadp/model"
)

// DataSetFieldConfig names one field of a PublishedDataSet and how its
// current value is obtained for each publication.
type DataSetFieldConfig struct {
	Name string `yaml:"name"`
	// GetValue is populated by the caller after loading from YAML; it is
	// not itself serializable.
	GetValue func() model.Variant `yaml:"-"`
}

// WriterGroupConfig is the static description of one periodic writer
// group: its identity, publication interval, and the DataSetMessages it
// emits each period.
type WriterGroupConfig struct {
	GroupID      uint16        `yaml:"groupId"`
	GroupVersion uint32        `yaml:"groupVersion"`
	PublishEvery time.Duration `yaml:"publishEvery"`

	// Writers is the ordered set of DataSetWriters belonging to this
	// group; each becomes one DataSetMessage in the NetworkMessage.
	Writers []DataSetWriterConfig `yaml:"writers"`

	// SecurityTokenID, when non-zero, selects the Ctx the publisher
	// resolves through a caller-supplied lookup; zero means ModeNone and
	// enables the preencode fast path.
	SecurityTokenID uint32 `yaml:"securityTokenId,omitempty"`
}

// DataSetWriterConfig describes one DataSetWriter within a WriterGroup.
type DataSetWriterConfig struct {
	WriterID uint16               `yaml:"writerId"`
	Fields   []DataSetFieldConfig `yaml:"fields"`
}

// StaticConfig holds the options that require a process restart to change:
// the publisher identity and the set of configured writer groups.
type StaticConfig struct {
	PublisherID  uint32
	ConfigFile   string
	PidFile      string
	WriterGroups []WriterGroupConfig
}

// CreatePidFile writes the running process id to c.PidFile.
func (c *StaticConfig) CreatePidFile() error {
	return os.WriteFile(c.PidFile, []byte(strconv.Itoa(unix.Getpid())+"\n"), 0644)
}

// DeletePidFile removes c.PidFile.
func (c *StaticConfig) DeletePidFile() error {
	return os.Remove(c.PidFile)
}

// ReadPidFile reads the process id written by CreatePidFile at path.
func ReadPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("pubsub: reading pid file %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pubsub: parsing pid file %s: %w", path, err)
	}
	return pid, nil
}

// ReadWriterGroups loads a []WriterGroupConfig from a YAML file, then
// validates it.
func ReadWriterGroups(path string) ([]WriterGroupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pubsub: reading config %s: %w", path, err)
	}
	var groups []WriterGroupConfig
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("pubsub: parsing config %s: %w", path, err)
	}
	for i, g := range groups {
		if g.PublishEvery <= 0 {
			return nil, fmt.Errorf("pubsub: writer group %d: publishEvery must be positive", i)
		}
	}
	return groups, nil
}

// WriteWriterGroups serializes groups back to YAML.
func WriteWriterGroups(path string, groups []WriterGroupConfig) error {
	d, err := yaml.Marshal(groups)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0644)
}
