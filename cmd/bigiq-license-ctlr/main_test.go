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
	"os"
	"path/filepath"

	"github.com/F5Networks/bigiq-license-ctlr/pkg/licensing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Main Tests", func() {
	BeforeEach(func() {
		_init()
	})

	parse := func(args ...string) {
		full := append([]string{
			"--bigiq-url=bigiq.example.com",
			"--bigiq-username=admin",
			"--bigiq-password=secret",
		}, args...)
		Expect(flags.Parse(full)).To(Succeed())
	}

	Describe("argument verification", func() {
		It("accepts a complete argument set", func() {
			parse(
				"--license-key=XXXX-XXXX-XXXX-XXXX-XXXX",
				"--offering=F5-BIG-MSP-AFM-10G-LIC",
				"--device=1.1.1.1",
				"--device-username=admin",
				"--device-password=secret",
			)
			Expect(verifyArgs()).To(Succeed())
			Expect(*bigIQURL).To(Equal("bigiq.example.com"))
			Expect(*device).To(Equal("1.1.1.1"))
			Expect(*devicePort).To(Equal(licensing.DefaultDevicePort))
			Expect(*state).To(Equal(licensing.StatePresent))
		})

		It("rejects missing BIG-IQ credentials", func() {
			Expect(flags.Parse([]string{"--device=1.1.1.1"})).To(Succeed())
			Expect(verifyArgs()).To(MatchError(ContainSubstring("credentials")))
		})

		It("accepts a credentials directory in place of credentials", func() {
			Expect(flags.Parse([]string{
				"--credentials-directory=/tmp/bigiq-test-creds",
				"--device=1.1.1.1",
			})).To(Succeed())
			Expect(verifyArgs()).To(Succeed())
		})

		It("requires a device or a task file", func() {
			parse()
			Expect(verifyArgs()).To(MatchError(ContainSubstring("device")))
		})

		It("accepts a task file in place of a device", func() {
			parse("--task-file=/tmp/task.yaml")
			Expect(verifyArgs()).To(Succeed())
		})
	})

	Describe("credential handling", func() {
		It("prefixes a bare host with https", func() {
			parse("--device=1.1.1.1")
			Expect(getCredentials()).To(Succeed())
			Expect(*bigIQURL).To(Equal("https://bigiq.example.com"))
		})

		It("keeps an explicit https URL unchanged", func() {
			parse("--device=1.1.1.1")
			*bigIQURL = "https://bigiq.example.com"
			Expect(getCredentials()).To(Succeed())
			Expect(*bigIQURL).To(Equal("https://bigiq.example.com"))
		})

		It("rejects a non-https URL scheme", func() {
			parse("--device=1.1.1.1")
			*bigIQURL = "http://bigiq.example.com"
			Expect(getCredentials()).To(MatchError(ContainSubstring("https://")))
		})

		It("reads credentials from the credentials directory", func() {
			dir := GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "username"), []byte("fileuser\n"), 0600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "password"), []byte("filepass\n"), 0600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "url"), []byte("bigiq.internal\n"), 0600)).To(Succeed())

			Expect(flags.Parse([]string{
				"--credentials-directory=" + dir,
				"--device=1.1.1.1",
			})).To(Succeed())
			Expect(getCredentials()).To(Succeed())
			Expect(*bigIQUsername).To(Equal("fileuser"))
			Expect(*bigIQPassword).To(Equal("filepass"))
			Expect(*bigIQURL).To(Equal("https://bigiq.internal"))
		})

		It("falls back to CLI arguments for files missing in the directory", func() {
			dir := GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "password"), []byte("filepass"), 0600)).To(Succeed())

			parse("--credentials-directory="+dir, "--device=1.1.1.1")
			Expect(getCredentials()).To(Succeed())
			Expect(*bigIQUsername).To(Equal("admin"))
			Expect(*bigIQPassword).To(Equal("filepass"))
		})

		It("errors when a credential is in neither the directory nor the arguments", func() {
			dir := GinkgoT().TempDir()
			Expect(flags.Parse([]string{
				"--credentials-directory=" + dir,
				"--device=1.1.1.1",
			})).To(Succeed())
			Expect(getCredentials()).To(MatchError(ContainSubstring("username not specified")))
		})
	})

	Describe("parameter merging", func() {
		writeTask := func(contents string) string {
			path := filepath.Join(GinkgoT().TempDir(), "task.yaml")
			Expect(os.WriteFile(path, []byte(contents), 0644)).To(Succeed())
			return path
		}

		It("builds parameters from flags alone", func() {
			parse(
				"--license-key=XXXX-XXXX-XXXX-XXXX-XXXX",
				"--offering=F5-BIG-MSP-AFM-10G-LIC",
				"--device=1.1.1.1",
				"--device-username=admin",
				"--device-password=secret",
				"--unit-of-measure=daily",
			)
			params, err := buildParams()
			Expect(err).To(BeNil())
			Expect(params.Key).To(Equal("XXXX-XXXX-XXXX-XXXX-XXXX"))
			Expect(params.Device).To(Equal("1.1.1.1"))
			Expect(params.UnitOfMeasure).To(Equal("daily"))
			Expect(params.DevicePort).To(Equal(licensing.DefaultDevicePort))
		})

		It("builds parameters from a task file alone", func() {
			path := writeTask(`
key: XXXX-XXXX-XXXX-XXXX-XXXX
offering: F5-BIG-MSP-AFM-10G-LIC
device: 1.1.1.1
device_username: fileadmin
device_password: filesecret
`)
			parse("--task-file=" + path)
			params, err := buildParams()
			Expect(err).To(BeNil())
			Expect(params.Key).To(Equal("XXXX-XXXX-XXXX-XXXX-XXXX"))
			Expect(params.DeviceUsername).To(Equal("fileadmin"))
		})

		It("lets explicit flags override the task file", func() {
			path := writeTask(`
key: XXXX-XXXX-XXXX-XXXX-XXXX
offering: F5-BIG-MSP-AFM-10G-LIC
device: 1.1.1.1
device_username: fileadmin
device_password: filesecret
unit_of_measure: daily
`)
			parse(
				"--task-file="+path,
				"--device=2.2.2.2",
				"--unit-of-measure=monthly",
			)
			params, err := buildParams()
			Expect(err).To(BeNil())
			Expect(params.Device).To(Equal("2.2.2.2"))
			Expect(params.UnitOfMeasure).To(Equal("monthly"))
			Expect(params.DeviceUsername).To(Equal("fileadmin"))
		})

		It("rejects merged parameters that fail validation", func() {
			parse(
				"--license-key=XXXX-XXXX-XXXX-XXXX-XXXX",
				"--offering=F5-BIG-MSP-AFM-10G-LIC",
				"--device=1.1.1.1",
			)
			_, err := buildParams()
			Expect(err).To(MatchError(ContainSubstring("device_username")))
		})
	})
})
