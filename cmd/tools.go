package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	app := &cli.App{
		Name:                 "Bilive Chat Tools",
		Usage:                "Bilive live chat tools",
		HideHelpCommand:      true,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			WashApp.Command(),
			ResolveApp.Command(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		klog.Fatal(err)
	}
}
