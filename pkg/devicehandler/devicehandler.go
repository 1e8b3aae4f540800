package devicehandler

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"github.com/f5devcentral/go-bigip"
)

const deviceHandlerPrefix = "[Device Handler]"

// DeviceClient is the subset of bigip.BigIP used for the pre-flight
// probe, kept narrow so tests can mock it.
type DeviceClient interface {
	GetDevices() ([]bigip.Device, error)
}

// DeviceProbe verifies an unmanaged BIG-IP is reachable with the
// supplied credentials before an assignment is posted for it.
type DeviceProbe struct {
	client DeviceClient
}

// CreateSession opens an authenticated session against the remote
// BIG-IP device.
func CreateSession(host string, port int, username, password string, insecure bool) (*bigip.BigIP, error) {
	config := &bigip.Config{
		Address:           host,
		Port:              strconv.Itoa(port),
		Username:          username,
		Password:          password,
		CertVerifyDisable: insecure,
		ConfigOptions: &bigip.ConfigOptions{
			APICallTimeout: 15 * time.Second,
			APICallRetries: 2,
		},
	}
	session, err := bigip.NewTokenSession(config)
	if err != nil {
		return nil, fmt.Errorf("unable to establish session with device %s: %v", host, err)
	}
	return session, nil
}

func NewDeviceProbe(client DeviceClient) *DeviceProbe {
	return &DeviceProbe{client: client}
}

// Verify confirms the device answers an authenticated read.
func (dp *DeviceProbe) Verify() error {
	devices, err := dp.client.GetDevices()
	if err != nil {
		return fmt.Errorf("device verification failed: %v", err)
	}
	log.Debugf("%s Device answered with %d cm device records", deviceHandlerPrefix, len(devices))
	return nil
}
