/*-
 * Copyright (c) 2021-2023, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package licensing

import (
	"os"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"gopkg.in/yaml.v2"
)

// TaskDoc is the declarative task document. It mirrors the CLI
// parameters; pointer fields distinguish "absent" from zero values so
// defaults apply correctly.
type TaskDoc struct {
	Key            string `yaml:"key" json:"key"`
	Offering       string `yaml:"offering" json:"offering"`
	Device         string `yaml:"device" json:"device"`
	Managed        *bool  `yaml:"managed" json:"managed,omitempty"`
	DevicePort     *int   `yaml:"device_port" json:"device_port,omitempty"`
	DeviceUsername string `yaml:"device_username" json:"device_username,omitempty"`
	DevicePassword string `yaml:"device_password" json:"device_password,omitempty"`
	UnitOfMeasure  string `yaml:"unit_of_measure" json:"unit_of_measure,omitempty"`
	State          string `yaml:"state" json:"state,omitempty"`
}

// LoadTaskFile reads and schema-validates a YAML task document.
func LoadTaskFile(path string) (*TaskDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErrorf("Unable to read task file %s: %v", path, err)
	}
	var doc TaskDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newErrorf("Unable to parse task file %s: %v", path, err)
	}
	if err := ValidateTask(&doc); err != nil {
		return nil, err
	}
	log.Debugf("%s Loaded task document from %s", licensingPrefix, path)
	return &doc, nil
}

// Params converts the task document into the desired parameter set,
// applying parameter defaults.
func (t *TaskDoc) Params() *Params {
	p := &Params{
		Key:            t.Key,
		Offering:       t.Offering,
		Device:         t.Device,
		DeviceUsername: t.DeviceUsername,
		DevicePassword: t.DevicePassword,
		DevicePort:     DefaultDevicePort,
		UnitOfMeasure:  DefaultUnitOfMeasure,
		State:          StatePresent,
	}
	if t.Managed != nil {
		p.Managed = *t.Managed
	}
	if t.DevicePort != nil {
		p.DevicePort = *t.DevicePort
	}
	if t.UnitOfMeasure != "" {
		p.UnitOfMeasure = t.UnitOfMeasure
	}
	if t.State != "" {
		p.State = t.State
	}
	return p
}
