package teem

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"github.com/f5devcentral/go-bigip/f5teem"
	"github.com/google/uuid"
)

const (
	staging    = "staging"
	production = "production"
)

// TeemsData contains the supporting data posted to TEEM's server.
type TeemsData struct {
	sync.Mutex
	CtlrVersion   string
	PlatformInfo  string
	Assignments   int
	Revocations   int
	AccessEnabled bool // Set to false once network rules are known to block the server
}

// PostTeemsData posts licensing telemetry to the TEEM server. The
// returned boolean reports whether the server remains reachable.
func (td *TeemsData) PostTeemsData() bool {
	if !td.AccessEnabled {
		return false
	}
	apiEnv := os.Getenv("TEEM_API_ENVIRONMENT")
	var apiKey string
	if apiEnv != "" {
		if apiEnv == staging {
			apiKey = os.Getenv("TEEM_API_KEY")
			if len(apiKey) == 0 {
				log.Error("API key missing to post to staging teem server")
				return false
			}
		} else if apiEnv != production {
			log.Error("Invalid TEEM_API_ENVIRONMENT. Unset to use production server")
			return false
		}
	}
	td.Lock()
	assetInfo := f5teem.AssetInfo{
		Name:    "BIG-IQ-License-Ctlr-Ecosystem",
		Version: fmt.Sprintf("LicenseCtlr/v%v", td.CtlrVersion),
		Id:      uuid.New().String(),
	}
	teemDevice := f5teem.AnonymousClient(assetInfo, apiKey)
	data := map[string]interface{}{
		"platformInfo":    td.PlatformInfo,
		"assignmentCount": td.Assignments,
		"revocationCount": td.Revocations,
	}
	td.Unlock()
	err := teemDevice.Report(data, "License Ctlr Telemetry Data", "1")
	if err != nil && !strings.Contains(err.Error(), "request-limit") {
		// TEEM responds 429 with request-limit when the hourly quota is
		// hit; it recovers on its own, so only hard failures disable
		// reporting.
		log.Debugf("Error reporting telemetry data :%v", err)
		td.AccessEnabled = false
	}
	return td.AccessEnabled
}
