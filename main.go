// Package main provides the tracefinity command-line entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"tracefinity/internal/bin"
	"tracefinity/internal/config"
	"tracefinity/internal/logging"
	"tracefinity/internal/pipeline"
	"tracefinity/internal/store"
	"tracefinity/internal/version"
	"tracefinity/pkg/geometry"
)

const usage = `Usage: tracefinity <command> [flags]

Commands:
  detect    -image <photo>                     find the paper corners
  rectify   -image <photo> [-paper a4|letter]  correct perspective, print scale
            [-corners x,y,x,y,x,y,x,y]
  build     -job <job.json5>                   build bin meshes from traced polygons
  tool add  -file <tool.json5>                 save a traced outline to the library
  tool list                                    list the tool library
  bin save  -file <layout.json5>               save a bin layout of library tools
  bin list                                     list saved bins
  user delete                                  remove all stored data for -user
  version                                      print version information

Run 'tracefinity <command> -h' for the shared flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd, args := args[0], args[1:]
	if (cmd == "tool" || cmd == "bin" || cmd == "user") && len(args) > 0 {
		cmd, args = cmd+" "+args[0], args[1:]
	}

	switch cmd {
	case "version", "-version", "--version":
		fmt.Println(version.String())
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	var (
		imagePath = fs.String("image", "", "Path to photo (TIFF, PNG, or JPEG)")
		paperName = fs.String("paper", "a4", "Paper size: a4 or letter")
		corners   = fs.String("corners", "", "Manual corners TL,TR,BR,BL as x,y pairs")
		jobPath   = fs.String("job", "", "Build job file (JSON5)")
		filePath  = fs.String("file", "", "Input record file (JSON5)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	scope := store.NewScope(cfg.StorageDir)
	runner := pipeline.NewRunner(cfg, scope)

	switch cmd {
	case "detect":
		if *imagePath == "" {
			return errors.New("detect: -image is required")
		}
		c, err := runner.Detect(ctx, *imagePath)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"corners": c})

	case "rectify":
		if *imagePath == "" {
			return errors.New("rectify: -image is required")
		}
		var manual *[4]geometry.Point2D
		if *corners != "" {
			c, err := parseCorners(*corners)
			if err != nil {
				return err
			}
			manual = &c
		}
		res, err := runner.Rectify(ctx, *imagePath, manual, *paperName)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "build":
		if *jobPath == "" {
			return errors.New("build: -job is required")
		}
		job, err := pipeline.LoadJob(*jobPath)
		if err != nil {
			return err
		}
		res, err := runner.Build(ctx, cfg.UserID, job)
		if err != nil {
			return err
		}
		return printJSON(res)

	case "tool add":
		var req pipeline.ToolRequest
		if err := loadRecord(*filePath, &req); err != nil {
			return err
		}
		tool, err := runner.AddTool(cfg.UserID, req)
		if err != nil {
			return err
		}
		return printJSON(tool)

	case "tool list":
		tools, err := runner.ListTools(cfg.UserID)
		if err != nil {
			return err
		}
		return printJSON(tools)

	case "bin list":
		bins, err := runner.ListBins(cfg.UserID)
		if err != nil {
			return err
		}
		return printJSON(bins)

	case "bin save":
		layout := struct {
			Name       string                      `json:"name"`
			Bin        bin.Config                  `json:"bin"`
			Placements []pipeline.PlacementRequest `json:"placements"`
		}{Bin: bin.DefaultConfig()}
		if err := loadRecord(*filePath, &layout); err != nil {
			return err
		}
		saved, err := runner.SaveBin(cfg.UserID, layout.Name, layout.Bin, layout.Placements)
		if err != nil {
			return err
		}
		return printJSON(saved)

	case "user delete":
		return scope.DeleteUser(cfg.UserID)
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func loadRecord(path string, v any) error {
	if path == "" {
		return errors.New("-file is required")
	}
	return config.LoadJSON5(path, v)
}

// parseCorners reads eight comma-separated numbers as four x,y pairs.
func parseCorners(s string) ([4]geometry.Point2D, error) {
	var c [4]geometry.Point2D
	parts := strings.Split(s, ",")
	if len(parts) != 8 {
		return c, fmt.Errorf("corners: want 8 numbers, got %d", len(parts))
	}
	var v [8]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return c, fmt.Errorf("corners: %w", err)
		}
		v[i] = f
	}
	for i := range c {
		c[i] = geometry.Point2D{X: v[2*i], Y: v[2*i+1]}
	}
	return c, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
