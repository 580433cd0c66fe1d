// Command segctl uploads images to a segmenter server and reports results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func usage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: segctl [flags] <command> [args]

Commands:
  upload <image>   upload an image and print the image its run produced
  latest           print the URL of the newest processed image
  watch            print run events as they happen

Flags:
`)
	flagSet.PrintDefaults()
}

func main() {
	flagSet := pflag.NewFlagSet("segctl", pflag.ContinueOnError)
	addr := flagSet.StringP("addr", "a", "http://localhost:8000", "segmenter server address")
	timeout := flagSet.Duration("timeout", 10*time.Minute, "request timeout for upload and latest")
	flagSet.Usage = func() { usage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}
	args := flagSet.Args()
	if len(args) == 0 {
		usage(flagSet)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := NewClient(*addr, nil)

	switch args[0] {
	case "upload":
		if len(args) != 2 {
			usage(flagSet)
			os.Exit(2)
		}
		reqCtx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		res, err := client.Upload(reqCtx, args[1])
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Printf("Processed (run %s)\n", res.RunID)
		fmt.Println(res.File)

	case "latest":
		reqCtx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		file, err := client.Latest(reqCtx)
		if err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}
		fmt.Println(file)

	case "watch":
		fmt.Printf("Watching %s for run events...\n", *addr)
		err := client.Watch(ctx, func(e RunEvent) {
			ts := time.UnixMilli(e.Ts).Format(time.TimeOnly)
			if e.Error != "" {
				fmt.Printf("[%s] %s %s: %s\n", ts, e.Type, e.RunID, e.Error)
				return
			}
			fmt.Printf("[%s] %s %s %s\n", ts, e.Type, e.RunID, e.File)
		})
		if err != nil {
			log.Fatalf("Watch failed: %v", err)
		}

	default:
		usage(flagSet)
		os.Exit(2)
	}
}
