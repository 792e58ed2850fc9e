// Package main implements svcctl, an interactive operator console for
// a running svcdemo tree: pick a registered service and an operation
// (start, stop, restart) from a huh select form, sent over the
// control Unix socket svcdemo exposes.
//
// Usage:
//
//	svcctl [options]
//
// Options:
//
//	--socket=PATH  Path to the control Unix socket (default: /tmp/svcdemo.sock)
//	--help         Show this help message
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/ksulejczak/goservice/control"
)

var (
	socketPath = flag.String("socket", "/tmp/svcdemo.sock", "Path to control Unix socket")
	showHelp   = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	client := control.NewClient(*socketPath, 5*time.Second)

	for {
		services, err := client.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "svcctl: %v\n", err)
			os.Exit(1)
		}
		if len(services) == 0 {
			fmt.Println("No services registered.")
			return
		}

		name, op, quit, err := promptChoice(services)
		if err != nil {
			fmt.Fprintf(os.Stderr, "svcctl: %v\n", err)
			os.Exit(1)
		}
		if quit {
			return
		}

		state, err := runOp(client, op, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s failed: %v\n", op, name, err)
			continue
		}
		fmt.Printf("%s %s -> %s\n", op, name, state)
	}
}

func promptChoice(services []control.ServiceInfo) (name, op string, quit bool, err error) {
	var serviceOptions []huh.Option[string]
	for _, svc := range services {
		label := fmt.Sprintf("%s (%s)", svc.Name, svc.State)
		serviceOptions = append(serviceOptions, huh.NewOption(label, svc.Name))
	}
	serviceOptions = append(serviceOptions, huh.NewOption("Quit", ""))

	opOptions := []huh.Option[string]{
		huh.NewOption("Start", "start"),
		huh.NewOption("Stop", "stop"),
		huh.NewOption("Restart", "restart"),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Service").
				Options(serviceOptions...).
				Value(&name),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Operation").
				Options(opOptions...).
				Value(&op),
		).WithHideFunc(func() bool { return name == "" }),
	)

	if err := form.Run(); err != nil {
		return "", "", false, err
	}
	if name == "" {
		return "", "", true, nil
	}
	return name, op, false, nil
}

func runOp(client *control.Client, op, name string) (string, error) {
	switch op {
	case "start":
		return client.Start(name)
	case "stop":
		return client.Stop(name)
	case "restart":
		return client.Restart(name)
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}
}
