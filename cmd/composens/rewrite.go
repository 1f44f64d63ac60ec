package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/artpar/composens/internal/core/compose"
	"github.com/artpar/composens/internal/core/deployment"
	"github.com/artpar/composens/internal/core/validation"
)

// =============================================================================
// Rewrite Command
// =============================================================================

// runRewrite namespaces the volumes of one compose file and writes the result
// to stdout. The input is read from the named file, or stdin when the file is
// "-" or missing.
func runRewrite(args []string, stdin io.Reader, stdout, stderr io.Writer, logger *slog.Logger) int {
	fs := flag.NewFlagSet("rewrite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	token := fs.String("token", "", "Namespace token (generated when empty)")
	check := fs.Bool("check", false, "Load the output as a compose project and verify volume references")
	project := fs.String("project", "", "Project name used by -check")
	output := fs.String("o", "", "Write the output to a file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "rewrite takes at most one file")
		return ExitConfigError
	}

	if *token == "" {
		*token = deployment.NewNamespaceToken()
	} else if err := validation.ValidateToken(*token); err != nil {
		fmt.Fprintf(stderr, "invalid token: %v\n", err)
		return ExitConfigError
	}

	input, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return ExitRewriteError
	}

	doc, err := compose.ParseDocument(input)
	if err != nil {
		fmt.Fprintf(stderr, "parse: %v\n", err)
		return ExitRewriteError
	}

	result, err := compose.NamespaceVolumes(doc, *token)
	if err != nil {
		fmt.Fprintf(stderr, "rewrite: %v\n", err)
		return ExitRewriteError
	}
	for _, s := range result.Skipped {
		logger.Warn("mount entry not namespaced", "field", s.Field(), "reason", s.Reason)
	}

	out, err := result.Document.Marshal()
	if err != nil {
		fmt.Fprintf(stderr, "marshal: %v\n", err)
		return ExitRewriteError
	}

	if *check {
		p, err := compose.LoadProject(out, compose.LoadOptions{
			ProjectName: *project,
			Environment: environ(),
		})
		if err == nil {
			err = p.CheckVolumeReferences()
		}
		if err != nil {
			fmt.Fprintf(stderr, "check: %v\n", err)
			return ExitRewriteError
		}
	}

	if *output != "" {
		if err := os.WriteFile(*output, out, 0o644); err != nil {
			fmt.Fprintf(stderr, "write output: %v\n", err)
			return ExitRewriteError
		}
	} else if _, err := stdout.Write(out); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return ExitRewriteError
	}

	logger.Info("compose volumes namespaced",
		"token", *token,
		"renamed", len(result.Renamed),
		"rewritten", len(result.Rewritten),
		"skipped", len(result.Skipped),
	)
	return ExitSuccess
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// environ returns the process environment as a map for interpolation.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
