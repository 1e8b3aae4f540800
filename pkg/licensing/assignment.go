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
	"net/http"
	"time"

	"github.com/F5Networks/bigiq-license-ctlr/pkg/bigiqclient"
	bigIQPrometheus "github.com/F5Networks/bigiq-license-ctlr/pkg/prometheus"
	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
)

const (
	licensingPrefix = "[Licensing]"

	statusLicensed = "LICENSED"

	// The member must read LICENSED this many times in a row before the
	// assignment is considered converged.
	licensedConsecutive = 3
	licensedPollLimit   = 30
	licensedPollDelay   = 5 * time.Second
)

// RestClient is the subset of the BIG-IQ client used by the
// AssignmentManager.
type RestClient interface {
	Get(path string) (*bigiqclient.RestResponse, error)
	Post(path string, body interface{}) (*bigiqclient.RestResponse, error)
	Delete(path string, body interface{}) (*bigiqclient.RestResponse, error)
}

// AssignmentManager reconciles one utility license assignment on the
// BIG-IQ.
type AssignmentManager struct {
	client    RestClient
	want      *Params
	CheckMode bool

	// PollInterval and PollLimit bound the LICENSED status poll. Tests
	// shrink them.
	PollInterval time.Duration
	PollLimit    int

	offeringID string
}

// NewAssignmentManager creates a manager for the desired parameters.
func NewAssignmentManager(client RestClient, params *Params, checkMode bool) *AssignmentManager {
	return &AssignmentManager{
		client:       client,
		want:         params,
		CheckMode:    checkMode,
		PollInterval: licensedPollDelay,
		PollLimit:    licensedPollLimit,
	}
}

// Run reconciles the desired state and returns the reportable result.
func (am *AssignmentManager) Run() (*Result, error) {
	var changed bool
	var err error

	switch am.want.State {
	case StatePresent:
		changed, err = am.present()
	case StateAbsent:
		changed, err = am.absent()
	default:
		err = newErrorf("'%s' is not a valid state, allowed values are: present/absent", am.want.State)
	}
	if err != nil {
		bigIQPrometheus.ReconcileErrors.WithLabelValues().Inc()
		return nil, err
	}

	result := &Result{
		Changed:       changed,
		Managed:       am.want.Managed,
		UnitOfMeasure: am.want.UnitOfMeasure,
	}
	if am.want.Managed {
		if am.want.DeviceIsID() {
			result.DeviceReference = localDeviceRefPrefix + am.want.Device
		}
	} else {
		if am.want.DeviceIsAddress() {
			result.DeviceAddress = am.want.Device
		}
		result.DevicePort = am.want.DevicePort
	}
	return result, nil
}

func (am *AssignmentManager) present() (bool, error) {
	exists, have, err := am.exists()
	if err != nil {
		return false, err
	}
	if exists {
		if drift := am.want.Diff(have); len(drift) > 0 {
			log.Debugf("%s Assignment for device %s differs in %v; the utility licensing API "+
				"does not support in-place update", licensingPrefix, am.want.Device, drift)
		}
		return false, nil
	}
	return am.create()
}

func (am *AssignmentManager) absent() (bool, error) {
	exists, _, err := am.exists()
	if err != nil {
		return false, err
	}
	if exists {
		return am.remove()
	}
	return false, nil
}

// exists resolves the member for the desired device and fetches it.
// A missing member or a 404 on the member URI means not-assigned.
func (am *AssignmentManager) exists() (bool, *ApiParams, error) {
	memberID, err := am.memberID()
	if err != nil {
		return false, nil, err
	}
	if memberID == "" {
		return false, nil, nil
	}

	uri, err := am.memberURI(memberID)
	if err != nil {
		return false, nil, err
	}
	resp, err := am.client.Get(uri)
	if err != nil {
		return false, nil, err
	}
	if resp.Code == http.StatusNotFound {
		return false, nil, nil
	}
	if !successCode(resp.Code) {
		return false, nil, apiError(resp)
	}
	return true, apiParamsFromMember(resp.Contents), nil
}

func (am *AssignmentManager) create() (bool, error) {
	if !am.want.Managed {
		if am.want.DeviceUsername == "" {
			return false, newErrorf("You must specify a 'device_username' when working with unmanaged devices.")
		}
		if am.want.DevicePassword == "" {
			return false, newErrorf("You must specify a 'device_password' when working with unmanaged devices.")
		}
	}
	if am.CheckMode {
		return true, nil
	}
	if err := am.createOnDevice(); err != nil {
		return false, err
	}
	exists, _, err := am.exists()
	if err != nil {
		return false, err
	}
	if !exists {
		return false, newErrorf("Failed to license the remote device.")
	}
	if err := am.waitForDeviceToBeLicensed(); err != nil {
		return false, err
	}
	bigIQPrometheus.LicenseAssignments.WithLabelValues(am.want.Offering).Inc()
	return true, nil
}

func (am *AssignmentManager) remove() (bool, error) {
	if am.CheckMode {
		return true, nil
	}
	if err := am.removeFromDevice(); err != nil {
		return false, err
	}
	exists, _, err := am.exists()
	if err != nil {
		return false, err
	}
	if exists {
		return false, newErrorf("Failed to delete the resource.")
	}
	bigIQPrometheus.LicenseRevocations.WithLabelValues(am.want.Offering).Inc()
	return true, nil
}

// createOnDevice posts the member assignment. Unmanaged devices carry
// their credentials in the body so the BIG-IQ can install the license.
func (am *AssignmentManager) createOnDevice() error {
	offeringID, err := am.resolveOfferingID()
	if err != nil {
		return err
	}

	body := &memberRequest{
		UnitOfMeasure: am.want.UnitOfMeasure,
	}
	if am.want.Managed {
		link, err := am.deviceReference()
		if err != nil {
			return err
		}
		body.DeviceReference = &deviceRef{Link: link}
	} else {
		body.DeviceAddress = am.want.Device
		body.HTTPSPort = am.want.DevicePort
		body.Username = am.want.DeviceUsername
		body.Password = am.want.DevicePassword
	}

	uri := fmt.Sprintf("%s%s/offerings/%s/members/", utilityLicensesURI, am.want.Key, offeringID)
	resp, err := am.client.Post(uri, body)
	if err != nil {
		return err
	}
	if !successCode(resp.Code) {
		return apiError(resp)
	}
	log.Debugf("%s Posted assignment for device %s to offering %s", licensingPrefix,
		am.want.Device, am.want.Offering)
	return nil
}

// removeFromDevice deletes the member. Revoking an unmanaged device
// needs the device credentials so the BIG-IQ can deregister it;
// convergence is verified afterwards through exists.
func (am *AssignmentManager) removeFromDevice() error {
	memberID, err := am.memberID()
	if err != nil {
		return err
	}
	uri, err := am.memberURI(memberID)
	if err != nil {
		return err
	}

	var body interface{}
	if !am.want.Managed {
		body = &memberRequest{
			ID:            memberID,
			DeviceAddress: am.want.Device,
			HTTPSPort:     am.want.DevicePort,
			UnitOfMeasure: am.want.UnitOfMeasure,
			Username:      am.want.DeviceUsername,
			Password:      am.want.DevicePassword,
		}
	}
	resp, err := am.client.Delete(uri, body)
	if err != nil {
		return err
	}
	log.Debugf("%s Delete of member %s returned %d", licensingPrefix, memberID, resp.Code)
	return nil
}

// waitForDeviceToBeLicensed polls the member until its status reads
// LICENSED three times in a row. The poll is bounded; exhausting it
// without convergence is an error.
func (am *AssignmentManager) waitForDeviceToBeLicensed() error {
	memberID, err := am.memberID()
	if err != nil {
		return err
	}
	uri, err := am.memberURI(memberID)
	if err != nil {
		return err
	}

	consecutive := 0
	for attempt := 0; attempt < am.PollLimit; attempt++ {
		resp, err := am.client.Get(uri)
		if err != nil {
			return err
		}
		if !successCode(resp.Code) {
			return apiError(resp)
		}
		bigIQPrometheus.LicenseStatusPolls.WithLabelValues(am.want.Offering).Inc()

		status, _ := resp.Contents["status"].(string)
		if status == statusLicensed {
			consecutive++
			if consecutive >= licensedConsecutive {
				log.Debugf("%s Device %s reached LICENSED", licensingPrefix, am.want.Device)
				return nil
			}
		} else {
			consecutive = 0
			log.Debugf("%s Device %s status is %s, waiting for LICENSED", licensingPrefix,
				am.want.Device, status)
		}
		time.Sleep(am.PollInterval)
	}
	return newErrorf("Device failed to reach the LICENSED state in the allotted time.")
}

// deviceReference resolves a managed device to its resolver link. The
// address form uses the single-address range lookup the resolver
// requires for equality on addresses.
func (am *AssignmentManager) deviceReference() (string, error) {
	filter, err := am.deviceFilter("address", "hostname", "uuid")
	if err != nil {
		return "", err
	}
	uri := fmt.Sprintf("%s?$filter=%s&$top=1", allBigIPDevicesURI, filter)
	resp, err := am.client.Get(uri)
	if err != nil {
		return "", err
	}
	if !successCode(resp.Code) {
		return "", apiError(resp)
	}
	if totalItems(resp.Contents) == 0 {
		return "", newErrorf("No device with the specified address was found.")
	}
	id, ok := firstItemString(resp.Contents, "uuid")
	if !ok {
		return "", newErrorf("Device lookup response did not include a uuid.")
	}
	return localDeviceRefPrefix + id, nil
}

// resolveOfferingID looks up the offering by name under the license key.
// The ID is cached for the life of the manager.
func (am *AssignmentManager) resolveOfferingID() (string, error) {
	if am.offeringID != "" {
		return am.offeringID, nil
	}
	filter := fmt.Sprintf("(name+eq+'%s')", am.want.Offering)
	uri := fmt.Sprintf("%s%s/offerings?$filter=%s&$top=1", utilityLicensesURI, am.want.Key, filter)
	resp, err := am.client.Get(uri)
	if err != nil {
		return "", err
	}
	if !successCode(resp.Code) {
		return "", apiError(resp)
	}
	if totalItems(resp.Contents) == 0 {
		return "", newErrorf("No offering with the specified name was found.")
	}
	id, ok := firstItemString(resp.Contents, "id")
	if !ok {
		return "", newErrorf("Offering lookup response did not include an id.")
	}
	am.offeringID = id
	return id, nil
}

// memberID looks up the member for the desired device, returning empty
// when no assignment exists.
func (am *AssignmentManager) memberID() (string, error) {
	offeringID, err := am.resolveOfferingID()
	if err != nil {
		return "", err
	}
	filter, err := am.deviceFilter("deviceAddress", "deviceName", "deviceMachineId")
	if err != nil {
		return "", err
	}
	uri := fmt.Sprintf("%s%s/offerings/%s/members/?$filter=%s", utilityLicensesURI,
		am.want.Key, offeringID, filter)
	resp, err := am.client.Get(uri)
	if err != nil {
		return "", err
	}
	if !successCode(resp.Code) {
		return "", apiError(resp)
	}
	if totalItems(resp.Contents) == 0 {
		return "", nil
	}
	id, ok := firstItemString(resp.Contents, "id")
	if !ok {
		return "", newErrorf("Member lookup response did not include an id.")
	}
	return id, nil
}

func (am *AssignmentManager) memberURI(memberID string) (string, error) {
	offeringID, err := am.resolveOfferingID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/offerings/%s/members/%s", utilityLicensesURI,
		am.want.Key, offeringID, memberID), nil
}

// deviceFilter builds the $filter expression for the desired device.
// Address equality uses the 'X...X' range form the BIG-IQ requires.
func (am *AssignmentManager) deviceFilter(addressField, nameField, idField string) (string, error) {
	d := am.want.Device
	switch {
	case am.want.DeviceIsAddress():
		return fmt.Sprintf("%s+eq+'%s...%s'", addressField, d, d), nil
	case am.want.DeviceIsID():
		return fmt.Sprintf("%s+eq+'%s'", idField, d), nil
	case am.want.DeviceIsName():
		return fmt.Sprintf("%s+eq+'%s'", nameField, d), nil
	}
	return "", newErrorf("Unknown device format '%s'", d)
}

func successCode(code int) bool {
	switch code {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	}
	return false
}

func totalItems(contents map[string]interface{}) int {
	if v, ok := contents["totalItems"].(float64); ok {
		return int(v)
	}
	return 0
}

func firstItemString(contents map[string]interface{}, key string) (string, bool) {
	items, ok := contents["items"].([]interface{})
	if !ok || len(items) == 0 {
		return "", false
	}
	item, ok := items[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := item[key].(string)
	return v, ok
}
