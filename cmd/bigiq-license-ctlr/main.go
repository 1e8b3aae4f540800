/*
 * Copyright (c) 2021-2023 F5 Networks, Inc.
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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/F5Networks/bigiq-license-ctlr/pkg/bigiqclient"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/devicehandler"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/health"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/httpclient"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/licensing"
	bigIQPrometheus "github.com/F5Networks/bigiq-license-ctlr/pkg/prometheus"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/teem"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/tokenmanager"
	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
	"github.com/F5Networks/bigiq-license-ctlr/pkg/writer"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh/terminal"
)

var (
	// To be set by build
	version   string
	buildInfo string

	// Flag sets and supported flags
	flags       *pflag.FlagSet
	globalFlags *pflag.FlagSet
	bigIQFlags  *pflag.FlagSet
	deviceFlags *pflag.FlagSet

	logLevel     *string
	printVersion *bool
	httpAddress  *string
	disableTeems *bool
	checkMode    *bool
	taskFile     *string
	resultFile   *string

	bigIQURL         *string
	bigIQUsername    *string
	bigIQPassword    *string
	credsDir         *string
	sslInsecure      *bool
	trustedCertsFile *string
	loginProvider    *string

	licenseKey     *string
	offering       *string
	device         *string
	managed        *bool
	devicePort     *int
	deviceUsername *string
	devicePassword *string
	unitOfMeasure  *string
	state          *string
	verifyDevice   *bool
)

func _init() {
	flags = pflag.NewFlagSet("main", pflag.ContinueOnError)
	globalFlags = pflag.NewFlagSet("Global", pflag.ContinueOnError)
	bigIQFlags = pflag.NewFlagSet("BigIQ", pflag.ContinueOnError)
	deviceFlags = pflag.NewFlagSet("Device", pflag.ContinueOnError)

	// Flag wrapping
	var err error
	var width int
	fd := int(os.Stdout.Fd())
	if terminal.IsTerminal(fd) {
		width, _, err = terminal.GetSize(fd)
		if nil != err {
			width = 0
		}
	}

	// Global flags
	logLevel = globalFlags.String("log-level", "INFO",
		"Optional, logging level")
	printVersion = globalFlags.Bool("version", false,
		"Optional, print version and exit.")
	httpAddress = globalFlags.String("http-listen-address", "",
		"Optional, address to serve http based informations (/metrics and /health).")
	disableTeems = globalFlags.Bool("disable-teems", false,
		"Optional, flag to disable sending telemetry data to TEEM")
	checkMode = globalFlags.Bool("check", false,
		"Optional, report what would change without issuing mutating calls.")
	taskFile = globalFlags.String("task-file", "",
		"Optional, YAML task document carrying the assignment parameters. "+
			"CLI arguments override the file values.")
	resultFile = globalFlags.String("result-file", "",
		"Optional, filepath to write the result document to, in addition to stdout.")

	globalFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  Global:\n%s\n", globalFlags.FlagUsagesWrapped(width))
	}

	// BigIQ flags
	bigIQURL = bigIQFlags.String("bigiq-url", "",
		"Required, URL for the BIG-IQ")
	bigIQUsername = bigIQFlags.String("bigiq-username", "",
		"Required, user name for the BIG-IQ user account.")
	bigIQPassword = bigIQFlags.String("bigiq-password", "",
		"Required, password for the BIG-IQ user account.")
	credsDir = bigIQFlags.String("credentials-directory", "",
		"Optional, directory that contains the BIG-IQ username, password, and/or "+
			"url files. To be used instead of username, password, and/or url arguments.")
	sslInsecure = bigIQFlags.Bool("insecure", false,
		"Optional, when set to true, enable insecure SSL communication to BIG-IQ.")
	trustedCertsFile = bigIQFlags.String("trusted-certs-file", "",
		"Optional, PEM file with certificates to add to the trusted certificate store.")
	loginProvider = bigIQFlags.String("login-provider", "tmos",
		"Optional, the BIG-IQ login provider used for authentication.")

	bigIQFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  BigIQ:\n%s\n", bigIQFlags.FlagUsagesWrapped(width))
	}

	// Device flags
	licenseKey = deviceFlags.String("license-key", "",
		"Required, the registration key from which to choose an offering.")
	offering = deviceFlags.String("offering", "",
		"Required, name of the license offering to assign to the device.")
	device = deviceFlags.String("device", "",
		"Required, address, hostname, or UUID of the device to license.")
	managed = deviceFlags.Bool("managed", false,
		"Optional, whether the device is already managed by the BIG-IQ.")
	devicePort = deviceFlags.Int("device-port", licensing.DefaultDevicePort,
		"Optional, port of the remote device to connect to.")
	deviceUsername = deviceFlags.String("device-username", "",
		"Optional, username used to connect to the remote device. "+
			"Required for unmanaged devices.")
	devicePassword = deviceFlags.String("device-password", "",
		"Optional, password used to connect to the remote device. "+
			"Required for unmanaged devices.")
	unitOfMeasure = deviceFlags.String("unit-of-measure", licensing.DefaultUnitOfMeasure,
		"Optional, rate at which license usage is billed: hourly/daily/monthly/yearly.")
	state = deviceFlags.String("state", licensing.StatePresent,
		"Optional, present to assign the license, absent to revoke it.")
	verifyDevice = deviceFlags.Bool("verify-device", false,
		"Optional, probe an unmanaged device with the supplied credentials before licensing.")

	deviceFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  Device:\n%s\n", deviceFlags.FlagUsagesWrapped(width))
	}

	flags.AddFlagSet(globalFlags)
	flags.AddFlagSet(bigIQFlags)
	flags.AddFlagSet(deviceFlags)

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s\n", os.Args[0])
		globalFlags.Usage()
		bigIQFlags.Usage()
		deviceFlags.Usage()
	}
}

func initLogger(logLevel string) error {
	log.RegisterLogger(log.LLMinLevel, log.LLMaxLevel, log.NewConsoleLogger())
	if ll := log.NewLogLevel(logLevel); ll != nil {
		log.SetLogLevel(*ll)
	} else {
		return fmt.Errorf("unknown log level requested: %s\n"+
			"    Valid log levels are: DEBUG, INFO, WARNING, ERROR, CRITICAL", logLevel)
	}
	return nil
}

func getCredentials() error {
	if len(*credsDir) > 0 {
		var usr, pass, bigiqURL string
		if strings.HasSuffix(*credsDir, "/") {
			usr = *credsDir + "username"
			pass = *credsDir + "password"
			bigiqURL = *credsDir + "url"
		} else {
			usr = *credsDir + "/username"
			pass = *credsDir + "/password"
			bigiqURL = *credsDir + "/url"
		}

		setField := func(field *string, filename, fieldType string) error {
			fileBytes, readErr := os.ReadFile(filename)
			if readErr != nil {
				log.Debugf("No %s in credentials directory, falling back to CLI argument", fieldType)
				if len(*field) == 0 {
					return fmt.Errorf("BIG-IQ %s not specified", fieldType)
				}
			} else {
				*field = strings.TrimSpace(string(fileBytes))
			}
			return nil
		}

		if err := setField(bigIQUsername, usr, "username"); err != nil {
			return err
		}
		if err := setField(bigIQPassword, pass, "password"); err != nil {
			return err
		}
		if err := setField(bigIQURL, bigiqURL, "url"); err != nil {
			return err
		}
	}

	// Verify URL is well-formed
	if !strings.HasPrefix(*bigIQURL, "https://") {
		if strings.Contains(*bigIQURL, "://") {
			return fmt.Errorf("invalid BIG-IQ-URL protocol: '%s' - must be 'https://'", *bigIQURL)
		}
		*bigIQURL = "https://" + *bigIQURL
	}
	return nil
}

func verifyArgs() error {
	if (len(*bigIQURL) == 0 || len(*bigIQUsername) == 0 ||
		len(*bigIQPassword) == 0) && len(*credsDir) == 0 {
		return fmt.Errorf("missing BIG-IQ credentials info")
	}
	if len(*taskFile) == 0 && len(*device) == 0 {
		return fmt.Errorf("missing required parameter device (or a task-file supplying it)")
	}
	return nil
}

// buildParams merges the optional task document with CLI flags; flags
// set on the command line take precedence over the file.
func buildParams() (*licensing.Params, error) {
	var params *licensing.Params
	if len(*taskFile) > 0 {
		doc, err := licensing.LoadTaskFile(*taskFile)
		if err != nil {
			return nil, err
		}
		params = doc.Params()
	} else {
		params = &licensing.Params{
			DevicePort:    licensing.DefaultDevicePort,
			UnitOfMeasure: licensing.DefaultUnitOfMeasure,
			State:         licensing.StatePresent,
		}
	}

	if flags.Changed("license-key") || params.Key == "" {
		params.Key = *licenseKey
	}
	if flags.Changed("offering") || params.Offering == "" {
		params.Offering = *offering
	}
	if flags.Changed("device") || params.Device == "" {
		params.Device = *device
	}
	if flags.Changed("managed") {
		params.Managed = *managed
	}
	if flags.Changed("device-port") {
		params.DevicePort = *devicePort
	}
	if flags.Changed("device-username") || params.DeviceUsername == "" {
		params.DeviceUsername = *deviceUsername
	}
	if flags.Changed("device-password") || params.DevicePassword == "" {
		params.DevicePassword = *devicePassword
	}
	if flags.Changed("unit-of-measure") {
		params.UnitOfMeasure = *unitOfMeasure
	}
	if flags.Changed("state") {
		params.State = *state
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// failResult reports a fatal error in the result document format and
// returns a non-zero exit code.
func failResult(rw writer.Writer, err error) int {
	log.Errorf("%v", err)
	out, _ := json.Marshal(map[string]interface{}{
		"failed": true,
		"msg":    err.Error(),
	})
	fmt.Println(string(out))
	if rw != nil {
		if doneCh, errCh, werr := rw.SendSection("result", map[string]interface{}{
			"failed": true,
			"msg":    err.Error(),
		}); werr == nil {
			select {
			case <-doneCh:
			case <-errCh:
			case <-time.After(2 * time.Second):
			}
		}
	}
	return 1
}

func run() int {
	err := flags.Parse(os.Args[1:])
	if nil != err {
		return 1
	}

	if *printVersion {
		fmt.Printf("Version: %s\nBuild: %s\n", version, buildInfo)
		return 0
	}

	if err := initLogger(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if err := getCredentials(); err != nil {
		log.Errorf("%v", err)
		flags.Usage()
		return 1
	}
	if err := verifyArgs(); err != nil {
		log.Errorf("%v", err)
		flags.Usage()
		return 1
	}

	var rw writer.Writer
	if len(*resultFile) > 0 {
		rw, err = writer.NewResultWriter(*resultFile)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		defer rw.Stop()
	}

	params, err := buildParams()
	if err != nil {
		return failResult(rw, err)
	}

	var trustedCerts string
	if len(*trustedCertsFile) > 0 {
		certBytes, err := os.ReadFile(*trustedCertsFile)
		if err != nil {
			return failResult(rw, fmt.Errorf("unable to read trusted certs file: %v", err))
		}
		trustedCerts = string(certBytes)
	}

	bigIQPrometheus.RegisterMetrics()
	httpClient := httpclient.New(httpclient.ClientConfig{
		TrustedCerts:  trustedCerts,
		SSLInsecure:   *sslInsecure,
		EnableMetrics: true,
		MetricsConfig: &httpclient.MetricsConfig{
			InFlightGauge:   bigIQPrometheus.ClientInFlight,
			RequestsCounter: bigIQPrometheus.ClientRequests,
			HistogramVec:    bigIQPrometheus.ClientDuration,
		},
	})

	tm := tokenmanager.NewTokenManager(*bigIQURL, tokenmanager.Credentials{
		Username:          *bigIQUsername,
		Password:          *bigIQPassword,
		LoginProviderName: *loginProvider,
	}, httpClient)

	if len(*httpAddress) > 0 {
		hc := health.HealthChecker{TokenManager: tm}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/health", hc.HealthCheckHandler())
		go func() {
			log.Errorf("%v", http.ListenAndServe(*httpAddress, mux))
		}()
	}

	if err, _ := tm.SyncTokenWithoutRetry(); err != nil {
		return failResult(rw, err)
	}

	if *verifyDevice && !params.Managed && params.State == licensing.StatePresent && !*checkMode {
		session, err := devicehandler.CreateSession(params.Device, params.DevicePort,
			params.DeviceUsername, params.DevicePassword, *sslInsecure)
		if err != nil {
			return failResult(rw, err)
		}
		if err := devicehandler.NewDeviceProbe(session).Verify(); err != nil {
			return failResult(rw, err)
		}
	}

	client := bigiqclient.New(*bigIQURL, tm, httpClient)
	manager := licensing.NewAssignmentManager(client, params, *checkMode)
	result, err := manager.Run()
	if err != nil {
		return failResult(rw, err)
	}

	if !*disableTeems && !*checkMode {
		td := &teem.TeemsData{
			CtlrVersion:   version,
			PlatformInfo:  "BIG-IQ utility licensing",
			AccessEnabled: true,
		}
		if result.Changed {
			if params.State == licensing.StatePresent {
				td.Assignments = 1
			} else {
				td.Revocations = 1
			}
		}
		if !td.PostTeemsData() {
			log.Debugf("Unable to post data to TEEM server. Restricted access")
		}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return failResult(rw, err)
	}
	fmt.Println(string(out))

	if rw != nil {
		doneCh, errCh, err := rw.SendSection("result", result)
		if err != nil {
			return failResult(rw, err)
		}
		select {
		case <-doneCh:
		case err := <-errCh:
			return failResult(rw, err)
		case <-time.After(2 * time.Second):
			log.Warning("Timed out writing result file")
		}
	}
	return 0
}

func main() {
	_init()
	os.Exit(run())
}
