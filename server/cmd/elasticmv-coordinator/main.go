package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/errgo.v1"

	"elasticmv/server"
	"elasticmv/server/cmd"
)

var (
	configFile = flag.String("config", "", "config file")
	cpuProf    = flag.Bool("cpuprof", false, "enable CPU profiling")
	memProf    = flag.Bool("memprof", false, "enable mem profiling")
)

func main() {
	flag.Parse()

	settings, err := cmd.LoadSettings(*configFile)
	if err != nil {
		cmd.Die(errgo.Mask(err))
	}

	cpuFile := cmd.StartCPUProf("elasticmv-coordinator", *cpuProf, nil)

	d, err := server.NewDispatcher(settings)
	if err != nil {
		cmd.Die(err)
	}

	err = d.Start()
	if err != nil {
		cmd.Die(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for {
			select {
			case sig := <-c:
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					d.Stop()
				case syscall.SIGUSR1:
					d.LogRotate()
				case syscall.SIGUSR2:
					cpuFile = cmd.StartCPUProf("elasticmv-coordinator", *cpuProf, cpuFile)
					cmd.WriteMemProf("elasticmv-coordinator", *memProf)
				}
			}
		}
	}()

	err = d.Wait()
	if stopErr := d.Stop(); err == nil {
		err = stopErr
	}
	cmd.Die(err)
}
