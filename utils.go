package uidriver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	adb "github.com/openatx/go-adb"
)

// PushFileFromHTTP downloads urlStr and writes it to dst on the device.
func PushFileFromHTTP(d *adb.Device, dst string, perms os.FileMode, urlStr string) error {
	wc, err := d.OpenWrite(dst, perms, time.Now())
	if err != nil {
		return err
	}
	resp, err := http.Get(urlStr)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http download <%s> status %v", urlStr, resp.Status)
	}
	defer resp.Body.Close()
	log.Printf("Downloading to %s ...", dst)
	if _, err = io.Copy(wc, resp.Body); err != nil {
		return err
	}
	return wc.Close()
}

// AdbCheckOutput runs a shell command and fails when its exit code is not 0.
// adb shell does not propagate exit codes, so the command echoes its own.
func AdbCheckOutput(d *adb.Device, name string, args ...string) (outStr string, err error) {
	args = append(args, ";", "echo", ":$?")
	outStr, err = d.RunCommand(name, args...)
	if err != nil {
		return
	}
	idx := strings.LastIndexByte(outStr, ':')
	if idx == -1 {
		return outStr, errors.New("adb shell error, parse exit code failed")
	}
	exitCode, _ := strconv.Atoi(strings.TrimSpace(outStr[idx+1:]))
	if exitCode != 0 {
		err = fmt.Errorf("[adb shell %s %s] exit code %d", name, strings.Join(args, " "), exitCode)
	}
	return outStr[0:idx], err
}

func AdbFileExists(d *adb.Device, path string) bool {
	_, err := AdbCheckOutput(d, "test", "-f", path)
	return err == nil
}

// adbKillProc signals every process named psName on the device.
// FIXME(ssx): maybe need to put into go-adb
func adbKillProc(d *adb.Device, psName string, sig syscall.Signal) (err error) {
	out, err := d.RunCommand("ps", "-C", psName)
	if err != nil {
		return
	}
	pids := pidsFromPs(out, psName)
	if pids == nil {
		return errors.New("No process named " + psName + " founded.")
	}
	for _, pid := range pids {
		d.RunCommand("kill", "-"+strconv.Itoa(int(sig)), pid)
	}
	return
}

// pidsFromPs picks the pids of psName out of ps output. Lines too short to
// hold the PID column are skipped; toolbox ps emits such fragments for
// kernel threads.
func pidsFromPs(out, psName string) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) <= 1 {
		return nil
	}
	var pidIndex int
	for idx, val := range strings.Fields(lines[0]) {
		if val == "PID" {
			pidIndex = idx
			break
		}
	}
	var pids []string
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if !strings.Contains(line, psName) {
			continue
		}
		if len(fields) <= pidIndex {
			continue
		}
		pids = append(pids, fields[pidIndex])
	}
	return pids
}

// GoFunc runs f in a goroutine and returns its error through a channel.
func GoFunc(f func() error) chan error {
	ch := make(chan error)
	go func() {
		ch <- f()
	}()
	return ch
}

type multiError struct {
	errs []error
}

func (m multiError) Error() string {
	var errStrs = make([]string, 0, len(m.errs))
	for _, err := range m.errs {
		errStrs = append(errStrs, err.Error())
	}
	return strings.Join(errStrs, "; ")
}

func wrapMultiError(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return multiError{nonNil}
}
