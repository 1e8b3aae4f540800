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
	"fmt"
	"net"

	"github.com/F5Networks/bigiq-license-ctlr/pkg/bigiqclient"
	"github.com/google/uuid"
)

const (
	utilityLicensesURI = "/mgmt/cm/device/licensing/pool/utility/licenses/"
	allBigIPDevicesURI = "/mgmt/shared/resolver/device-groups/cm-bigip-allBigIpDevices/devices/"

	// BIG-IQ device references are always rooted at localhost.
	localDeviceRefPrefix = "https://localhost" + allBigIPDevicesURI

	StatePresent = "present"
	StateAbsent  = "absent"

	DefaultDevicePort    = 443
	DefaultUnitOfMeasure = "hourly"
)

// UnitOfMeasureChoices are the billing rates accepted by the utility
// licensing API.
var UnitOfMeasureChoices = []string{"hourly", "daily", "monthly", "yearly"}

// Error is the single fatal error kind for licensing operations. Remote
// failures carry the raw response body as the message.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func newErrorf(format string, args ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// apiError wraps an unexpected BIG-IQ response into an Error carrying
// the raw body.
func apiError(resp *bigiqclient.RestResponse) *Error {
	return &Error{msg: string(resp.Raw)}
}

// Params holds the desired state supplied by the caller.
type Params struct {
	Key            string
	Offering       string
	Device         string
	Managed        bool
	DevicePort     int
	DeviceUsername string
	DevicePassword string
	UnitOfMeasure  string
	State          string
}

// DeviceIsAddress reports whether the device parameter is an IP address.
func (p *Params) DeviceIsAddress() bool {
	return net.ParseIP(p.Device) != nil
}

// DeviceIsID reports whether the device parameter is a device UUID.
func (p *Params) DeviceIsID() bool {
	if p.DeviceIsAddress() {
		return false
	}
	_, err := uuid.Parse(p.Device)
	return err == nil
}

// DeviceIsName reports whether the device parameter is a hostname,
// which is assumed when it is neither an address nor a UUID.
func (p *Params) DeviceIsName() bool {
	return !p.DeviceIsAddress() && !p.DeviceIsID()
}

// Validate checks the parameter set before any network call is made.
func (p *Params) Validate() error {
	if p.Key == "" {
		return newErrorf("A 'key' is required when managing utility license assignment.")
	}
	if p.Offering == "" {
		return newErrorf("An 'offering' is required when managing utility license assignment.")
	}
	if p.Device == "" {
		return newErrorf("A 'device' is required when managing utility license assignment.")
	}
	switch p.State {
	case StatePresent, StateAbsent:
	default:
		return newErrorf("'%s' is not a valid state, allowed values are: present/absent", p.State)
	}
	if !contains(UnitOfMeasureChoices, p.UnitOfMeasure) {
		return newErrorf("'%s' is not a valid unit_of_measure, allowed values are: hourly/daily/monthly/yearly",
			p.UnitOfMeasure)
	}
	if p.State == StatePresent && !p.Managed {
		if p.DeviceUsername == "" {
			return newErrorf("You must specify a 'device_username' when working with unmanaged devices.")
		}
		if p.DevicePassword == "" {
			return newErrorf("You must specify a 'device_password' when working with unmanaged devices.")
		}
	}
	return nil
}

// ApiParams holds the observed state of an existing member record.
type ApiParams struct {
	ID              string
	DeviceAddress   string
	DeviceReference string
	HTTPSPort       int
	UnitOfMeasure   string
	Status          string
}

// apiParamsFromMember extracts the observed state from a member record
// returned by the BIG-IQ.
func apiParamsFromMember(contents map[string]interface{}) *ApiParams {
	have := &ApiParams{}
	if v, ok := contents["id"].(string); ok {
		have.ID = v
	}
	if v, ok := contents["deviceAddress"].(string); ok {
		have.DeviceAddress = v
	}
	if v, ok := contents["httpsPort"].(float64); ok {
		have.HTTPSPort = int(v)
	}
	if v, ok := contents["unitOfMeasure"].(string); ok {
		have.UnitOfMeasure = v
	}
	if v, ok := contents["status"].(string); ok {
		have.Status = v
	}
	if ref, ok := contents["deviceReference"].(map[string]interface{}); ok {
		if link, ok := ref["link"].(string); ok {
			have.DeviceReference = link
		}
	}
	return have
}

// Diff reports the attribute names whose desired value differs from the
// observed member record. The utility licensing API has no in-place
// update, so drift is reported rather than reconciled.
func (p *Params) Diff(have *ApiParams) []string {
	var drift []string
	if have == nil {
		return drift
	}
	if p.Managed {
		if have.DeviceReference == "" {
			drift = append(drift, "device_reference")
		}
	} else {
		if p.DeviceIsAddress() && have.DeviceAddress != p.Device {
			drift = append(drift, "device_address")
		}
		if have.HTTPSPort != 0 && have.HTTPSPort != p.DevicePort {
			drift = append(drift, "device_port")
		}
	}
	if have.UnitOfMeasure != "" && have.UnitOfMeasure != p.UnitOfMeasure {
		drift = append(drift, "unit_of_measure")
	}
	return drift
}

// deviceRef is the reference payload BIG-IQ expects for managed
// devices.
type deviceRef struct {
	Link string `json:"link"`
}

// memberRequest is the body posted to the members collection. Managed
// and unmanaged field groups are mutually exclusive.
type memberRequest struct {
	ID              string     `json:"id,omitempty"`
	DeviceReference *deviceRef `json:"deviceReference,omitempty"`
	DeviceAddress   string     `json:"deviceAddress,omitempty"`
	HTTPSPort       int        `json:"httpsPort,omitempty"`
	UnitOfMeasure   string     `json:"unitOfMeasure,omitempty"`
	Username        string     `json:"username,omitempty"`
	Password        string     `json:"password,omitempty"`
}

// Result is the reconcile outcome reported back to the caller.
// Credentials are never reported.
type Result struct {
	Changed         bool   `json:"changed"`
	DeviceAddress   string `json:"device_address,omitempty"`
	DeviceReference string `json:"device_reference,omitempty"`
	DevicePort      int    `json:"device_port,omitempty"`
	Managed         bool   `json:"managed"`
	UnitOfMeasure   string `json:"unit_of_measure,omitempty"`
}

func contains(choices []string, value string) bool {
	for _, c := range choices {
		if c == value {
			return true
		}
	}
	return false
}
