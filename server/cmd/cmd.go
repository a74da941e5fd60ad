// Package cmd holds helpers shared by the elasticmv commands.
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/errgo.v1"

	"elasticmv/server"
)

func Die(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// LoadSettings parses the config file at path, or returns the defaults if
// path is empty.
func LoadSettings(path string) (*server.Settings, error) {
	if path == "" {
		settings := server.DefaultSettings()
		return &settings, nil
	}
	conf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	settings, err := server.ParseSettings(string(conf))
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return settings, nil
}

// StartCPUProf starts a CPU profile for the named program, first finishing
// the prior one if any.
func StartCPUProf(name string, cpuProf bool, prior *os.File) *os.File {
	if prior != nil {
		pprof.StopCPUProfile()
		log.Infof("CPU profile written to %q", prior.Name())
		prior.Close()
		os.Rename(filepath.Join(os.TempDir(), name+"-cpu.prof.part"),
			filepath.Join(os.TempDir(), name+"-cpu.prof"))
	}
	if cpuProf {
		profName := filepath.Join(os.TempDir(), name+"-cpu.prof.part")
		f, err := os.Create(profName)
		if err != nil {
			Die(errors.WithStack(err))
		}
		pprof.StartCPUProfile(f)
		return f
	}
	return nil
}

func WriteMemProf(name string, memProf bool) {
	if memProf {
		tmpName := filepath.Join(os.TempDir(), fmt.Sprintf("%s-mem.prof.%d", name, time.Now().Unix()))
		profName := filepath.Join(os.TempDir(), name+"-mem.prof")
		f, err := os.Create(tmpName)
		if err != nil {
			Die(errors.WithStack(err))
		}
		err = pprof.WriteHeapProfile(f)
		f.Close()
		if err != nil {
			log.Warningf("failed to write heap profile: %v", err)
			return
		}
		log.Infof("Heap profile written to %q", f.Name())
		os.Rename(tmpName, profName)
	}
}
