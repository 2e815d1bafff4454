// pixelboard CLI - Command line client for a pixelboard canvas
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/eldtechnologies/pixelboard/clients/go/pixelboard"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := pixelboard.NewClient("")
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "config":
		resp, err := client.Config()
		exitOnError(err)
		printJSON(resp)

	case "pixels":
		pixels, err := client.GetPixels()
		exitOnError(err)
		for _, p := range pixels {
			fmt.Printf("%4d %4d  %s\n", p.X, p.Y, p.Color)
		}
		fmt.Printf("%d painted cells\n", len(pixels))

	case "place":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: pixelboard place <x> <y> <#rrggbb>")
			os.Exit(1)
		}
		x, err := strconv.Atoi(os.Args[2])
		exitOnError(err)
		y, err := strconv.Atoi(os.Args[3])
		exitOnError(err)

		err = client.Place(x, y, os.Args[4])
		if pixelboard.IsCooldown(err) {
			apiErr := err.(*pixelboard.APIError)
			fmt.Fprintf(os.Stderr, "Cooldown: retry in %s\n", apiErr.RetryAfter)
			os.Exit(2)
		}
		exitOnError(err)
		fmt.Printf("Placed %s at (%d, %d)\n", os.Args[4], x, y)

	case "watch":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err := client.Watch(ctx, func(ev pixelboard.Event) error {
			switch ev.Type {
			case pixelboard.TypeConfig:
				fmt.Printf("Canvas %dx%d, cooldown %dms\n", ev.Config.Width, ev.Config.Height, ev.Config.CooldownMs)
			case pixelboard.TypePixel:
				fmt.Printf("%4d %4d  %s\n", ev.Pixel.X, ev.Pixel.Y, ev.Pixel.Color)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			exitOnError(err)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`pixelboard CLI - shared pixel canvas

Usage: pixelboard <command> [options]

Commands:
  place <x> <y> <color>   Paint a cell (#rrggbb)
  pixels                  List painted cells
  config                  Show canvas size and cooldown
  watch                   Stream placements as they happen
  health                  Check server health

Environment:
  PIXELBOARD_URL   Server URL (default: http://localhost:3000)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
