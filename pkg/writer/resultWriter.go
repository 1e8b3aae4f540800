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

package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
)

// Writer serializes named result sections into a single JSON document
// on disk. The automation host reads the file once the run exits.
type Writer interface {
	Stop()
	SendSection(string, interface{}) (<-chan struct{}, <-chan error, error)
}

// Writing goes through a narrow file interface so the locking paths can
// be unit tested with a mock file.
type pseudoFileInterface interface {
	Close() error
	Fd() uintptr
	Truncate(size int64) error
	Write(b []byte) (n int, err error)
}

type resultWriter struct {
	resultFile string
	stopCh     chan struct{}
	dataCh     chan resultSection
	sectionMap map[string]interface{}
}

type resultSection struct {
	name    string
	data    interface{}
	doneCh  chan struct{}
	errorCh chan error
}

// NewResultWriter creates a writer targeting the given file path and
// starts its write loop.
func NewResultWriter(resultFile string) (Writer, error) {
	if len(resultFile) == 0 {
		return nil, fmt.Errorf("result file path must not be empty")
	}

	rw := &resultWriter{
		resultFile: resultFile,
		stopCh:     make(chan struct{}),
		dataCh:     make(chan resultSection),
		sectionMap: make(map[string]interface{}),
	}

	go rw.waitData()

	log.Debugf("ResultWriter started for %s", resultFile)
	return rw, nil
}

func (rw *resultWriter) Stop() {
	defer func() {
		if r := recover(); r != nil {
			log.Warningf("ResultWriter (%p) stop called after stop", rw)
		}
	}()

	rw.stopCh <- struct{}{}
	close(rw.stopCh)
	close(rw.dataCh)

	log.Debugf("ResultWriter stopped: %p", rw)
}

func (rw *resultWriter) SendSection(
	name string,
	obj interface{},
) (<-chan struct{}, <-chan error, error) {
	if 0 == len(name) {
		return nil, nil, fmt.Errorf("cannot marshal section without name")
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warningf("ResultWriter (%p) SendSection called after stop", rw)
		}
	}()

	done := make(chan struct{})
	err := make(chan error)
	rw.dataCh <- resultSection{
		name:    name,
		data:    obj,
		doneCh:  done,
		errorCh: err,
	}

	return done, err, nil
}

// The result file is advisory-locked while written so a reader polling
// the path never observes a partial document.
func (rw *resultWriter) _lockAndWrite(
	f pseudoFileInterface,
	output []byte,
) (bool, error) {
	var wroteSome bool

	flock := syscall.Flock_t{
		Type:   syscall.F_WRLCK,
		Start:  0,
		Len:    0,
		Whence: int16(os.SEEK_SET),
	}
	err := syscall.FcntlFlock(uintptr(f.Fd()), syscall.F_SETLKW, &flock)
	if nil != err {
		return wroteSome, err
	}

	err = f.Truncate(0)
	if nil != err {
		return wroteSome, err
	}
	n, err := f.Write(output)
	if nil != err {
		if 0 != n {
			wroteSome = true
		}
		return wroteSome, err
	}
	wroteSome = true

	flock = syscall.Flock_t{
		Type:   syscall.F_UNLCK,
		Start:  0,
		Len:    0,
		Whence: int16(os.SEEK_SET),
	}
	err = syscall.FcntlFlock(uintptr(f.Fd()), syscall.F_SETLKW, &flock)

	return wroteSome, err
}

func (rw *resultWriter) lockAndWrite(output []byte) (wroteSome bool, err error) {
	f, err := os.OpenFile(rw.resultFile, os.O_WRONLY|os.O_CREATE, 0644)
	if nil != err {
		return wroteSome, err
	}

	defer func() {
		if err != nil {
			f.Close()
		} else {
			err = f.Close()
		}
	}()

	wroteSome, err = rw._lockAndWrite(f, output)

	return wroteSome, err
}

func (rw *resultWriter) waitData() {
	respondDone := func(d chan<- struct{}) {
		select {
		case d <- struct{}{}:
		case <-time.After(time.Second):
		}
	}
	respondErr := func(e chan<- error, err error) {
		select {
		case e <- err:
		case <-time.After(time.Second):
		}
	}
	for {
		select {
		case <-rw.stopCh:
			log.Debugf("ResultWriter (%p) received stop signal", rw)
			return
		case rs := <-rw.dataCh:
			// check if this section will marshal
			_, err := json.Marshal(rs.data)
			if nil != err {
				log.Warningf("ResultWriter (%p) received bad json for section (%s): %v",
					rw, rs.name, err)
				go respondErr(rs.errorCh, err)
				continue
			}

			rw.sectionMap[rs.name] = rs.data
			output, err := json.Marshal(rw.sectionMap)
			if nil != err {
				log.Warningf("ResultWriter (%p) received marshal error (%s): %v",
					rw, rs.name, err)
				go respondErr(rs.errorCh, err)
				continue
			}

			wrote, err := rw.lockAndWrite(output)
			if nil != err {
				if wrote {
					log.Warningf("ResultWriter (%p) errored during write of section (%s): %v",
						rw, rs.name, err)
				} else {
					log.Warningf("ResultWriter (%p) failed to write section (%s): %v",
						rw, rs.name, err)
				}
				go respondErr(rs.errorCh, err)
			} else {
				log.Debugf("ResultWriter (%p) successfully wrote section (%s)",
					rw, rs.name)
				go respondDone(rs.doneCh)
			}
		}
	}
}
