// Command mcfn is the toolchain's command-line entry point: compile a
// directory of .mcfunction sources to a container executable, run either a
// source directory or an already-compiled executable, or disassemble a
// compiled executable back to text.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wudi/mcfn/compiler"
	"github.com/wudi/mcfn/container"
	"github.com/wudi/mcfn/debugconsole"
	"github.com/wudi/mcfn/diag"
	"github.com/wudi/mcfn/disasm"
	"github.com/wudi/mcfn/version"
	"github.com/wudi/mcfn/vm"
)

var log = diag.NewLogger("mcfn", diag.LevelInfo)

func main() {
	app := &cli.Command{
		Name:  "mcfn",
		Usage: "compile and run the command-language dialect this toolchain targets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "w",
				Aliases: []string{"write"},
				Usage:   "output path to write the resulting executable (compile, run) or disassembly (disassemble)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "attach the interactive stepping console to a run",
			},
			&cli.BoolFlag{
				Name:  "version",
				Usage: "print the toolchain version and exit",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "action"},
			&cli.StringArg{Name: "source"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.Version())
				return nil
			}

			action := cmd.StringArg("action")
			source := cmd.StringArg("source")
			if action == "" || source == "" {
				fmt.Fprintln(os.Stderr, usage)
				os.Exit(1)
			}

			output := cmd.String("w")
			switch strings.ToLower(action) {
			case "run":
				return runAction(source, output, cmd.Bool("debug"))
			case "compile":
				return compileAction(source, output)
			case "disassemble":
				return disassembleAction(source, output)
			default:
				log.Error("invalid action: %s", action)
				fmt.Fprintln(os.Stderr, usage)
				os.Exit(1)
				return nil
			}
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Critical("%v", err)
		os.Exit(1)
	}
}

const usage = "Usage: mcfn (run | compile | disassemble) [-w <output_path>] <source_path>"

// dirLoader builds a compiler.Loader over a source directory, where a
// function named "a/b" resolves to "<dir>/a/b.mcfunction".
func dirLoader(dir string) compiler.Loader {
	return func(name string) (string, error) {
		path := filepath.Join(dir, name+".mcfunction")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}
}

func compileNamespace(sourceDir string) (*container.Executable, error) {
	namespace := filepath.Base(filepath.Clean(sourceDir))
	log.Info("compiling namespace %q from %s", namespace, sourceDir)

	sink := &compiler.CollectingSink{}
	exe, err := compiler.CompileNamespaceWithDiagnostics(namespace, dirLoader(sourceDir), sink)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	for _, d := range sink.Diagnostics {
		log.Warning("%s", d)
	}
	log.Info("compiled %d function(s)", len(exe.Functions))
	return exe, nil
}

func compileAction(sourcePath, output string) error {
	if output == "" {
		return fmt.Errorf("compile requires -w <output_path>")
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("source path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("compile requires a directory of .mcfunction sources, got a file: %s", sourcePath)
	}
	exe, err := compileNamespace(sourcePath)
	if err != nil {
		return err
	}
	return writeExecutable(exe, output)
}

func writeExecutable(exe *container.Executable, output string) error {
	data, err := container.Write(exe)
	if err != nil {
		return fmt.Errorf("encoding executable: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	log.Info("executable written to %s", output)
	return nil
}

func runAction(sourcePath, output string, debug bool) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("source path: %w", err)
	}

	var exe *container.Executable
	if info.IsDir() {
		log.Info("compiling and running directory: %s", sourcePath)
		exe, err = compileNamespace(sourcePath)
	} else {
		log.Info("running executable file: %s", sourcePath)
		exe, err = readExecutable(sourcePath)
	}
	if err != nil {
		return err
	}

	if _, ok := exe.Functions["main"]; !ok {
		return fmt.Errorf("executable is missing required 'main' function")
	}

	m := vm.NewMachine(exe.Functions, 1, os.Stdout)

	if debug {
		console, err := debugconsole.New(os.Stdout)
		if err != nil {
			return err
		}
		defer console.Close()
		m.Debug = console.Hook()
	}

	log.Info("running executable from namespace %q", exe.Namespace)
	if err := m.Run(); err != nil {
		return fmt.Errorf("execution error: %w", err)
	}
	log.Info("execution completed successfully")

	if output != "" {
		return writeExecutable(exe, output)
	}
	return nil
}

func disassembleAction(sourcePath, output string) error {
	exe, err := readExecutable(sourcePath)
	if err != nil {
		return err
	}
	text := disasm.Executable(exe)
	fmt.Println(text)
	if output != "" {
		if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing disassembly to %s: %w", output, err)
		}
		log.Info("disassembly written to %s", output)
	}
	return nil
}

func readExecutable(path string) (*container.Executable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	exe, err := container.Read(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return exe, nil
}
