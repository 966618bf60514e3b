package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskd/internal/adapter"
	"taskd/internal/orchestrator"
)

type runFlags struct {
	task        string
	image       string
	maxLength   int
	minLength   int
	temperature float32
	topP        float32
	save        bool
	dest        string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [text...]",
		Short: "Run one task and print its result",
		Example: "  taskd run --task Summarization < article.txt\n" +
			"  taskd run --task Translation --language German \"Good morning\"\n" +
			"  taskd run --task \"Image Classification\" --image cat.jpg",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g, cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(cfg, os.Stderr)
			text := strings.Join(args, " ")
			if text == "" && f.image == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			orch, err := buildOrchestrator(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = orch.Close(closeCtx)
			}()
			return runOnce(ctx, orch, orchestrator.RunRequest{
				Task:      f.task,
				Text:      text,
				ImagePath: f.image,
				Options: adapter.Options{
					MaxLength:   f.maxLength,
					MinLength:   f.minLength,
					Temperature: f.temperature,
					TopP:        f.topP,
				},
				Language:    g.language,
				Save:        f.save,
				Destination: f.dest,
			}, cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.task, "task", adapter.DefaultTask, "Task to run")
	fl.StringVar(&f.image, "image", "", "Image path for image classification")
	fl.IntVar(&f.maxLength, "max-length", 0, "Maximum output length")
	fl.IntVar(&f.minLength, "min-length", 0, "Minimum output length (summarization)")
	fl.Float32Var(&f.temperature, "temperature", 0, "Sampling temperature (text generation)")
	fl.Float32Var(&f.topP, "top-p", 0, "Nucleus sampling (text generation)")
	fl.BoolVar(&f.save, "save", false, "Append the result to the task's output file")
	fl.StringVar(&f.dest, "dest", "", "Output file for --save")
	return cmd
}

// runOnce submits req and waits for its completion.
func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.RunRequest, out io.Writer) error {
	done := make(chan orchestrator.Completion, 1)
	if _, err := orch.Submit(ctx, req, func(c orchestrator.Completion) { done <- c }); err != nil {
		return err
	}
	var c orchestrator.Completion
	select {
	case c = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !c.Success {
		return errors.New(c.Payload)
	}
	fmt.Fprintln(out, c.Payload)
	if c.SaveError != "" {
		return fmt.Errorf("save output: %s", c.SaveError)
	}
	return nil
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported translation languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range adapter.Languages() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Name, l.Model)
			}
			return nil
		},
	}
}
