// handlers.go contains the command implementations. Builders in
// commands.go stay declarative; the work happens here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/toolhub/internal/config"
	"github.com/haasonsaas/toolhub/internal/discovery"
	"github.com/haasonsaas/toolhub/internal/hub"
	"github.com/haasonsaas/toolhub/internal/schema"
	"github.com/haasonsaas/toolhub/pkg/models"
)

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	return cfg, nil
}

// newHub builds and initializes a hub from the config file.
func newHub(ctx context.Context, configPath string) (*hub.Hub, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	h, err := hub.New(ctx, cfg.HubOptions())
	if err != nil {
		return nil, err
	}
	if err := h.InitAllTools(ctx); err != nil {
		h.Shutdown(ctx)
		return nil, err
	}
	return h, nil
}

func runScan(cmd *cobra.Command, configPath string) error {
	ctx, cancel := signalContext()
	defer cancel()

	h, err := newHub(ctx, configPath)
	if err != nil {
		return err
	}
	defer h.Shutdown(ctx)

	byKind := map[models.ToolKind]int{}
	specs := h.Registry().List()
	for _, spec := range specs {
		byKind[spec.Kind]++
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "registered %d tools\n", len(specs))
	for _, kind := range models.Kinds {
		if n := byKind[kind]; n > 0 {
			fmt.Fprintf(out, "  %-15s %d\n", string(kind), n)
		}
	}
	return nil
}

func runList(cmd *cobra.Command, configPath, detail string) error {
	ctx, cancel := signalContext()
	defer cancel()

	h, err := newHub(ctx, configPath)
	if err != nil {
		return err
	}
	defer h.Shutdown(ctx)

	out := cmd.OutOrStdout()
	for _, name := range h.Registry().Names() {
		spec, ok := h.Registry().Get(name)
		if !ok {
			continue
		}
		switch detail {
		case "short":
			fmt.Fprintln(out, spec.Name)
		case "normal":
			fmt.Fprintf(out, "%s\t%s\t%s\n", spec.Name, string(spec.Kind), spec.Description)
		case "full":
			payload, err := json.Marshal(spec)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", spec.Name, err)
			}
			fmt.Fprintln(out, string(payload))
		}
	}
	return nil
}

// runVerify validates the config, scans every root, and checks each
// discovered spec for registry invariants and compilable schemas.
func runVerify(cmd *cobra.Command, configPath string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	roots := make([]discovery.Root, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		roots = append(roots, discovery.Root{Path: r.Path, Namespace: r.Namespace})
	}

	var dirErrors []*discovery.DirError
	scanner := discovery.NewScanner(discovery.Config{
		Roots:   roots,
		OnError: func(e *discovery.DirError) { dirErrors = append(dirErrors, e) },
	})
	specs, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	validator := schema.NewValidator()
	type problem struct {
		subject string
		err     error
	}
	var problems []problem
	for _, e := range dirErrors {
		problems = append(problems, problem{
			subject: fmt.Sprintf("%s (%s)", e.Dir, string(e.Phase)),
			err:     e.Err,
		})
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			problems = append(problems, problem{subject: spec.Name, err: err})
			continue
		}
		if _, err := validator.Compile(spec.InputSchema); err != nil {
			problems = append(problems, problem{subject: spec.Name + " inputSchema", err: err})
		}
		if _, err := validator.Compile(spec.OutputSchema); err != nil {
			problems = append(problems, problem{subject: spec.Name + " outputSchema", err: err})
		}
	}

	out := cmd.OutOrStdout()
	if len(problems) == 0 {
		fmt.Fprintf(out, "ok: %d tools across %d roots\n", len(specs), len(roots))
		return nil
	}

	sort.Slice(problems, func(i, j int) bool { return problems[i].subject < problems[j].subject })
	for _, p := range problems {
		fmt.Fprintf(out, "FAIL %s: %v\n", p.subject, p.err)
	}
	return fmt.Errorf("verify found %d problems", len(problems))
}
