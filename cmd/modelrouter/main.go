// Command modelrouter is the operator CLI for a running router node:
// manage model records, drive benchmarks, query best-model selections,
// and summarize long text through the server's entry points.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/contenox/modelrouter/benchservice"
	"github.com/contenox/modelrouter/internal/modelrepo"
	"github.com/contenox/modelrouter/runtimesdk"
	"github.com/contenox/modelrouter/runtimetypes"
	"github.com/contenox/modelrouter/selectorservice"
	"github.com/contenox/modelrouter/summarizer"
	"github.com/contenox/modelrouter/taskrunservice"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

func newClient(ctx context.Context) (*runtimesdk.Client, error) {
	return runtimesdk.NewClient(ctx, runtimesdk.Config{
		BaseURL: serverURL,
		Token:   authToken,
	}, nil)
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func main() {
	root := &cobra.Command{
		Use:           "modelrouter",
		Short:         "Operate a model router node",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the router node")
	root.PersistentFlags().StringVar(&authToken, "token", "", "bearer token, if the node requires one")

	root.AddCommand(modelsCmd())
	root.AddCommand(benchCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List declared model records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			records, err := client.ModelService.List(cmd.Context(), nil, 100)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}

	var tasks []string
	var disabled bool
	add := &cobra.Command{
		Use:   "add <provider/model>",
		Short: "Declare a model record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, model, err := runtimetypes.SplitModelKey(args[0])
			if err != nil {
				return err
			}
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			record := &runtimetypes.ModelRecord{
				Provider:  provider,
				ModelName: model,
				Tasks:     tasks,
				Enabled:   !disabled,
			}
			if err := client.ModelService.Append(cmd.Context(), record); err != nil {
				return err
			}
			return printJSON(record)
		},
	}
	add.Flags().StringSliceVar(&tasks, "task", []string{string(modelrepo.TaskChatCompletion)}, "supported tasks")
	add.Flags().BoolVar(&disabled, "disabled", false, "create the record disabled")

	remove := &cobra.Command{
		Use:   "rm <provider/model>",
		Short: "Delete a model record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			return client.ModelService.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run benchmarks and inspect results",
	}

	var task, size, model, provider string
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one benchmark case",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			result, err := client.BenchService.Run(cmd.Context(), task, size, model, provider)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	run.Flags().StringVar(&task, "task", string(modelrepo.TaskChatCompletion), "task to benchmark")
	run.Flags().StringVar(&size, "size", benchservice.SizeSmall, "case size (small, medium, large)")
	run.Flags().StringVar(&model, "model", "", "model override")
	run.Flags().StringVar(&provider, "provider", "", "provider override (requires --model)")

	var sweepTasks, sweepSizes []string
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Benchmark every enabled model record",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			results, err := client.BenchService.Sweep(cmd.Context(), sweepTasks, sweepSizes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d case runs\n", len(results))
			return printJSON(results)
		},
	}
	sweep.Flags().StringSliceVar(&sweepTasks, "task", nil, "restrict to these tasks")
	sweep.Flags().StringSliceVar(&sweepSizes, "size", nil, "restrict to these sizes")

	var bestTask, bestSize, criterion string
	best := &cobra.Command{
		Use:   "best",
		Short: "Pick the best model for a task from stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			selection, err := client.SelectorService.BestModel(cmd.Context(), bestTask, bestSize, criterion)
			if err != nil {
				return err
			}
			return printJSON(selection)
		},
	}
	best.Flags().StringVar(&bestTask, "task", string(modelrepo.TaskChatCompletion), "task to select for")
	best.Flags().StringVar(&bestSize, "size", benchservice.SizeSmall, "case size")
	best.Flags().StringVar(&criterion, "criterion", selectorservice.CriterionDuration, "duration, tokens, or reliability")

	var resTask, resSize string
	results := &cobra.Command{
		Use:   "results",
		Short: "List stored benchmark results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			list, err := client.BenchService.ListResults(cmd.Context(), resTask, resSize)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	results.Flags().StringVar(&resTask, "task", "", "filter by task")
	results.Flags().StringVar(&resSize, "size", "", "filter by size")

	cases := &cobra.Command{
		Use:   "cases",
		Short: "List the embedded benchmark fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			list, err := client.BenchService.ListCases(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}

	cmd.AddCommand(run, sweep, best, results, cases)
	return cmd
}

func chatCmd() *cobra.Command {
	var model, provider string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one chat message through the resolved model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := client.TaskRunService.Chat(cmd.Context(), taskrunservice.ChatRequest{
				Target: taskrunservice.Target{Provider: provider, Model: model},
				Messages: []modelrepo.Message{
					{Role: "user", Content: args[0]},
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message.Content)
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s/%s, %d tokens]\n", resp.Usage.Provider, resp.Usage.Model, resp.Usage.Tokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&provider, "provider", "", "provider override (requires --model)")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var model, provider, language, detail, profile string
	var chunkSize, overlap, parallel int
	cmd := &cobra.Command{
		Use:   "summarize [file]",
		Short: "Summarize long text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			text := strings.TrimSpace(string(raw))
			if text == "" {
				return fmt.Errorf("no text to summarize")
			}

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			started := time.Now()
			resp, err := client.TaskRunService.Summarize(cmd.Context(), taskrunservice.SummarizeRequest{
				Target:    taskrunservice.Target{Provider: provider, Model: model},
				Text:      text,
				ChunkSize: chunkSize,
				Overlap:   overlap,
				Options: summarizer.Options{
					TargetLanguage: language,
					MaxParallel:    parallel,
					DetailLevel:    detail,
					PromptProfile:  profile,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Summary)
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d chunks, %d calls, %s]\n", resp.Chunks, len(resp.Usage), time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&provider, "provider", "", "provider override (requires --model)")
	cmd.Flags().StringVar(&language, "language", "", "target language for the summary")
	cmd.Flags().StringVar(&detail, "detail", "", "detail level hint")
	cmd.Flags().StringVar(&profile, "profile", "general", "prompt profile (general, technical, legal, meeting)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "characters per chunk (0 uses the server default)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "characters of overlap between chunks")
	cmd.Flags().IntVar(&parallel, "parallel", 3, "map-phase parallelism (clamped server-side)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and override task configuration",
	}

	get := &cobra.Command{
		Use:   "get <task>",
		Short: "Show the resolved configuration for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := client.ConfigService.GetTaskConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	set := &cobra.Command{
		Use:   "set <task> <provider/model>",
		Short: "Set the current-model override for a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.ConfigService.SetOverride(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "override set; run 'config reload' to apply")
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear <task>",
		Short: "Remove the current-model override for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			return client.ConfigService.ClearOverride(cmd.Context(), args[0])
		},
	}

	reload := &cobra.Command{
		Use:   "reload",
		Short: "Reload configuration across all nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			return client.ConfigService.Reload(cmd.Context())
		},
	}

	cmd.AddCommand(get, set, clear, reload)
	return cmd
}
